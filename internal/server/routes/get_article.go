package routes

import (
	"errors"
	"net/http"

	"github.com/vigil-intel/vigil/internal/server/middleware"
	"github.com/vigil-intel/vigil/pkg/correlate"

	"github.com/labstack/echo/v4"
)

func GetArticleHandler(c echo.Context) error {
	engine := c.(*middleware.AppContext).App.Engine

	article, err := engine.GetArticle(c.Param("id"))
	if err != nil {
		if errors.Is(err, correlate.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, article)
}
