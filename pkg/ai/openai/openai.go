package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"

	"github.com/vigil-intel/vigil/pkg/ai"
)

// IntelOpenAIClient implements ai.Client against OpenAI-compatible APIs.
// It manages separate clients for embeddings and chat so the two can point
// at different deployments.
//
// An IntelOpenAIClient should be created using NewIntelOpenAIClient.
type IntelOpenAIClient struct {
	embeddingModel string
	analysisModel  string

	embeddingURL string
	embeddingKey string
	chatURL      string
	chatKey      string

	reqLock    *semaphore.Weighted
	timeoutMin int

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewIntelOpenAIClientParams defines the configuration parameters for
// creating a new IntelOpenAIClient.
//
// EmbeddingModel specifies the model used for embeddings.
// AnalysisModel specifies the chat model used for summaries and extraction.
// EmbeddingURL/EmbeddingKey and ChatURL/ChatKey configure the endpoints;
// an empty URL falls back to the public OpenAI API.
type NewIntelOpenAIClientParams struct {
	EmbeddingModel string
	AnalysisModel  string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	MaxConcurrentRequests int64
	TimeoutMinutes        int
}

// NewIntelOpenAIClient creates and returns a new IntelOpenAIClient
// configured with the provided parameters.
//
// Example:
//
//	client := openai.NewIntelOpenAIClient(openai.NewIntelOpenAIClientParams{
//		EmbeddingModel: "text-embedding-3-small",
//		AnalysisModel:  "gpt-4o-mini",
//		EmbeddingKey:   os.Getenv("OPENAI_API_KEY"),
//		ChatKey:        os.Getenv("OPENAI_API_KEY"),
//	})
func NewIntelOpenAIClient(params NewIntelOpenAIClientParams) *IntelOpenAIClient {
	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 15
	}
	timeoutMin := params.TimeoutMinutes
	if timeoutMin <= 0 {
		timeoutMin = 5
	}

	return &IntelOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		analysisModel:  params.AnalysisModel,

		embeddingURL: params.EmbeddingURL,
		embeddingKey: params.EmbeddingKey,
		chatURL:      params.ChatURL,
		chatKey:      params.ChatKey,

		reqLock:    semaphore.NewWeighted(maxConcurrent),
		timeoutMin: timeoutMin,

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

func (c *IntelOpenAIClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}

// ResetMetrics clears the accumulated usage metrics.
func (c *IntelOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns a snapshot of the accumulated usage metrics.
func (c *IntelOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
