package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/vigil-intel/vigil/internal/ingest"
	"github.com/vigil-intel/vigil/internal/server/middleware"
	"github.com/vigil-intel/vigil/pkg/common"
	"github.com/vigil-intel/vigil/pkg/correlate"

	"github.com/labstack/echo/v4"
)

func IngestArticleHandler(c echo.Context) error {
	type request struct {
		Title       string    `json:"title" validate:"required"`
		URL         string    `json:"url" validate:"required,url"`
		Content     string    `json:"content"`
		PublishedAt time.Time `json:"published_at"`
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	engine := c.(*middleware.AppContext).App.Engine
	result, err := engine.Ingest(c.Request().Context(), &common.Article{
		ID:          ingest.ArticleID(req.URL),
		Title:       req.Title,
		URL:         req.URL,
		Content:     req.Content,
		PublishedAt: req.PublishedAt,
	})
	if err != nil {
		if errors.Is(err, correlate.ErrInvalidArticle) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.String(http.StatusInternalServerError, err.Error())
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}
