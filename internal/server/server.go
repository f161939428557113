package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "github.com/vigil-intel/vigil/internal/server/middleware"

	"github.com/vigil-intel/vigil/internal/ingest"
	"github.com/vigil-intel/vigil/internal/util"
	"github.com/vigil-intel/vigil/pkg/ai"
	oai "github.com/vigil-intel/vigil/pkg/ai/ollama"
	gai "github.com/vigil-intel/vigil/pkg/ai/openai"
	"github.com/vigil-intel/vigil/pkg/correlate"
	"github.com/vigil-intel/vigil/pkg/logger"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func newAIClient() ai.Client {
	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := oai.NewIntelOllamaClient(oai.NewIntelOllamaClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			AnalysisModel:  util.GetEnv("AI_ANALYSIS_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewIntelOpenAIClient(gai.NewIntelOpenAIClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			AnalysisModel:  util.GetEnv("AI_ANALYSIS_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
	}
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient := newAIClient()
	engine := correlate.NewEngine(aiClient, correlate.ConfigFromEnv())
	poller := ingest.NewPoller(engine, ingest.PollerConfigFromEnv())

	if util.GetEnvBool("FEED_POLL_ENABLED", true) {
		go poller.Run(ctx)
	}

	e.Use(mid.AppContextMiddleware(engine, poller))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("8M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
