package server

import (
	"wdkg/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Derived quarterly series
	apiRoutes.GET("/signals", routes.GetSignalsHandler)
	apiRoutes.GET("/features", routes.GetFeaturesHandler)

	// Graph routes
	apiRoutes.GET("/entities/:id", routes.GetEntityHandler)
	apiRoutes.GET("/entities/:id/relationships", routes.GetEntityRelationshipsHandler)

	// Ingestion
	apiRoutes.POST("/documents", routes.PostDocumentsHandler)
}
