package routes

import (
	"net/http"
	"strconv"

	"github.com/vigil-intel/vigil/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

const defaultArticleLimit = 50

func GetArticlesHandler(c echo.Context) error {
	engine := c.(*middleware.AppContext).App.Engine

	limit := defaultArticleLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = parsed
	}

	if query := c.QueryParam("q"); query != "" {
		return c.JSON(http.StatusOK, engine.SearchArticles(query, limit))
	}
	return c.JSON(http.StatusOK, engine.ListArticles(limit))
}
