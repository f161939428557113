package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vigil-intel/vigil/pkg/ai"
	"github.com/vigil-intel/vigil/pkg/correlate"
)

// stubClient returns an empty analysis and a fixed embedding, enough for
// the pipeline to run end to end.
type stubClient struct{}

func (stubClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (stubClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return nil
}

func (stubClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubClient) ResetMetrics()               {}
func (stubClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func TestPollerRunOnce(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>
<item><title>Story one</title><link>%s/one</link>
<description>Feed summary one.</description>
<pubDate>Mon, 02 Mar 2026 10:00:00 +0000</pubDate></item>
<item><title>Story two</title><link>%s/two</link>
<description>Feed summary two.</description>
<pubDate>Mon, 02 Mar 2026 11:00:00 +0000</pubDate></item>
</channel></rss>`, server.URL, server.URL)
	})
	pageHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articlePage)
	}
	mux.HandleFunc("/one", pageHandler)
	mux.HandleFunc("/two", pageHandler)

	engine := correlate.NewEngine(stubClient{}, correlate.Config{})
	poller := NewPoller(engine, PollerConfig{
		FeedURL:       server.URL + "/feed",
		FetchFullText: true,
	})

	results, err := poller.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("result count = %d, want 2", len(results))
	}
	for i, r := range results {
		if r.Duplicate {
			t.Errorf("result %d flagged duplicate on first poll", i)
		}
	}

	// Full text replaced the short feed summary.
	article, err := engine.GetArticle(results[0].ArticleID)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if len(article.Content) <= len("Feed summary one.") {
		t.Errorf("content not upgraded to scraped text: %q", article.Content)
	}

	// A second poll of the same feed is a no-op.
	again, err := poller.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce() error = %v", err)
	}
	for i, r := range again {
		if !r.Duplicate {
			t.Errorf("result %d not flagged duplicate on repeat poll", i)
		}
	}
	if stats := engine.GetStats(); stats.Articles != 2 {
		t.Errorf("article count = %d, want 2", stats.Articles)
	}
}

func TestPollerFeedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	engine := correlate.NewEngine(stubClient{}, correlate.Config{})
	poller := NewPoller(engine, PollerConfig{FeedURL: server.URL})

	if _, err := poller.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce() error = nil for failing feed")
	}
}
