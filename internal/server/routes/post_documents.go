package routes

import (
	"net/http"

	"wdkg/internal/queue"
	"wdkg/internal/server/middleware"
	"wdkg/pkg/ingest"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// PostDocumentsHandler accepts classified document batches and hands them to
// the worker over the ingest queue. Validation of individual records happens
// in the worker; this endpoint only checks the envelope.
func PostDocumentsHandler(c echo.Context) error {
	type postDocumentsParams struct {
		Documents []ingest.DocumentBatch `json:"documents" validate:"required,min=1"`
	}

	params := new(postDocumentsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App

	runID, err := queue.PublishIngest(app.Queue, params.Documents)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to enqueue documents"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID})
}
