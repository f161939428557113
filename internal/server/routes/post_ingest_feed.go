package routes

import (
	"net/http"

	"github.com/vigil-intel/vigil/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// IngestFeedHandler triggers one feed poll synchronously and reports the
// per-item outcomes.
func IngestFeedHandler(c echo.Context) error {
	poller := c.(*middleware.AppContext).App.Poller

	results, err := poller.RunOnce(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items":   len(results),
		"results": results,
	})
}
