package server

import (
	"github.com/vigil-intel/vigil/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Article routes
	apiRoutes.GET("/articles", routes.GetArticlesHandler)
	apiRoutes.GET("/articles/:id", routes.GetArticleHandler)
	apiRoutes.GET("/articles/:id/connections", routes.GetConnectionsHandler)
	apiRoutes.GET("/articles/:id/timeline", routes.GetTimelineHandler)

	// Graph routes
	apiRoutes.GET("/graph/stats", routes.GetGraphStatsHandler)

	// Ingestion routes
	apiRoutes.POST("/ingest", routes.IngestArticleHandler)
	apiRoutes.POST("/ingest/feed", routes.IngestFeedHandler)
}
