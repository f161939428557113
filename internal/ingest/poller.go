package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vigil-intel/vigil/internal/util"
	"github.com/vigil-intel/vigil/pkg/common"
	"github.com/vigil-intel/vigil/pkg/correlate"
	"github.com/vigil-intel/vigil/pkg/logger"
)

const defaultFeedURL = "https://feeds.feedburner.com/TheHackersNews"

// PollerConfig controls feed polling. Zero values fall back to defaults.
type PollerConfig struct {
	FeedURL string

	// Interval between polls.
	Interval time.Duration

	// FetchFullText upgrades feed summaries to scraped article pages.
	FetchFullText bool
}

// PollerConfigFromEnv reads the polling settings from the environment.
func PollerConfigFromEnv() PollerConfig {
	return PollerConfig{
		FeedURL:       util.GetEnvString("FEED_URL", defaultFeedURL),
		Interval:      time.Duration(util.GetEnvNumeric("FEED_POLL_MINUTES", 30)) * time.Minute,
		FetchFullText: util.GetEnvBool("FEED_FETCH_FULL_TEXT", true),
	}
}

// Poller periodically pulls the feed and hands new articles to the
// correlation engine. The engine's own duplicate handling makes repeated
// polls of the same feed cheap.
type Poller struct {
	cfg     PollerConfig
	engine  *correlate.Engine
	scraper *Scraper
	client  *http.Client
}

func NewPoller(engine *correlate.Engine, cfg PollerConfig) *Poller {
	if cfg.FeedURL == "" {
		cfg.FeedURL = defaultFeedURL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	client := &http.Client{Timeout: 60 * time.Second}
	return &Poller{
		cfg:     cfg,
		engine:  engine,
		scraper: NewScraper(client),
		client:  client,
	}
}

// Run polls immediately and then on every tick until the context ends.
func (p *Poller) Run(ctx context.Context) {
	logger.Info("feed poller started",
		"feed", p.cfg.FeedURL, "interval", p.cfg.Interval.String())

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil {
			logger.Error("feed poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("feed poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce fetches the feed and ingests its items as one batch.
func (p *Poller) RunOnce(ctx context.Context) ([]correlate.IngestResult, error) {
	articles, err := p.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, nil
	}

	if p.cfg.FetchFullText {
		for _, article := range articles {
			if _, err := p.engine.GetArticle(article.ID); err == nil {
				continue
			}
			text, err := p.scraper.FetchArticleText(ctx, article.URL)
			if err != nil {
				logger.Warn("full text fetch failed, keeping feed summary",
					"article", article.ID, "error", err)
				continue
			}
			if len(text) > len(article.Content) {
				article.Content = util.CollapseWhitespace(text)
			}
		}
	}

	results, err := p.engine.IngestBatch(ctx, articles)
	if err != nil {
		return nil, err
	}

	var fresh int
	for _, r := range results {
		if !r.Duplicate {
			fresh++
		}
	}
	logger.Info("feed poll finished", "items", len(results), "new", fresh)
	return results, nil
}

func (p *Poller) fetchFeed(ctx context.Context) ([]*common.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: status %d", p.cfg.FeedURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return ParseFeed(data)
}
