package routes

import (
	"net/http"

	"wdkg/internal/server/middleware"
	"wdkg/pkg/asof"
	"wdkg/pkg/features"
	"wdkg/pkg/kg"
	"wdkg/pkg/signals"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetFeaturesHandler returns the lagged feature table for a quarter range.
// Rows that would violate the as-of ordering are excluded; their presence is
// reported as a 422 so a caller cannot silently train on a leaky table.
func GetFeaturesHandler(c echo.Context) error {
	type getFeaturesParams struct {
		From string `query:"from" validate:"required"`
		To   string `query:"to" validate:"required"`
	}

	params := new(getFeaturesParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	from, err := kg.ParseQuarter(params.From)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid from quarter"})
	}
	to, err := kg.ParseQuarter(params.To)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid to quarter"})
	}
	if to.Before(from) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Quarter range is inverted"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	agg := signals.New(asof.New(app.Store))
	sigs, err := agg.ComputeRange(ctx, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	table, err := features.New().Build(sigs, features.DefaultLagSpec())
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"error": err.Error(),
			"table": table,
		})
	}

	return c.JSON(http.StatusOK, table)
}
