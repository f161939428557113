package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/vigil-intel/vigil/internal/ingest"
	"github.com/vigil-intel/vigil/pkg/correlate"
)

// App bundles the long-lived services handlers need.
type App struct {
	Engine *correlate.Engine
	Poller *ingest.Poller
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(engine *correlate.Engine, poller *ingest.Poller) echo.MiddlewareFunc {
	app := &App{
		Engine: engine,
		Poller: poller,
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
