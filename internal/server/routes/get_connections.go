package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/vigil-intel/vigil/internal/server/middleware"
	"github.com/vigil-intel/vigil/pkg/correlate"

	"github.com/labstack/echo/v4"
)

// maxConnectionDepth caps traversal depth so one request cannot walk the
// whole graph.
const maxConnectionDepth = 4

func GetConnectionsHandler(c echo.Context) error {
	engine := c.(*middleware.AppContext).App.Engine

	depth := 0
	if raw := c.QueryParam("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxConnectionDepth {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "depth must be between 1 and 4"})
		}
		depth = parsed
	}

	view, err := engine.GetConnections(c.Param("id"), depth)
	if err != nil {
		if errors.Is(err, correlate.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}
