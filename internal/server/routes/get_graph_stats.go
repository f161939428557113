package routes

import (
	"net/http"

	"github.com/vigil-intel/vigil/internal/server/middleware"
	"github.com/vigil-intel/vigil/pkg/ai"
	"github.com/vigil-intel/vigil/pkg/correlate"

	"github.com/labstack/echo/v4"
)

func GetGraphStatsHandler(c echo.Context) error {
	type response struct {
		correlate.Stats
		ModelMetrics ai.ModelMetrics `json:"model_metrics"`
	}

	engine := c.(*middleware.AppContext).App.Engine
	return c.JSON(http.StatusOK, response{
		Stats:        engine.GetStats(),
		ModelMetrics: engine.Metrics(),
	})
}
