package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/sync/singleflight"
)

// Scraper fetches article pages and extracts their readable text. Results
// are cached per URL and concurrent fetches for the same URL are collapsed
// into one request.
type Scraper struct {
	client *http.Client

	cache   map[string]string
	cacheMu sync.RWMutex
	group   singleflight.Group
}

func NewScraper(client *http.Client) *Scraper {
	if client == nil {
		client = http.DefaultClient
	}
	return &Scraper{
		client: client,
		cache:  make(map[string]string),
	}
}

// FetchArticleText downloads a page and returns its main content as plain
// text. Non-HTML responses are an error; feeds link to article pages.
func (s *Scraper) FetchArticleText(ctx context.Context, pageURL string) (string, error) {
	s.cacheMu.RLock()
	if cached, ok := s.cache[pageURL]; ok {
		s.cacheMu.RUnlock()
		return cached, nil
	}
	s.cacheMu.RUnlock()

	result, err, _ := s.group.Do(pageURL, func() (any, error) {
		s.cacheMu.RLock()
		if cached, ok := s.cache[pageURL]; ok {
			s.cacheMu.RUnlock()
			return cached, nil
		}
		s.cacheMu.RUnlock()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
		}
		if contentType := resp.Header.Get("Content-Type"); !strings.Contains(contentType, "text/html") {
			return nil, fmt.Errorf("fetch %s: unexpected content type %q", pageURL, contentType)
		}

		parsed, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse url: %w", err)
		}
		article, err := readability.FromReader(resp.Body, parsed)
		if err != nil {
			return nil, fmt.Errorf("failed to parse html: %w", err)
		}
		var builder strings.Builder
		if err := article.RenderText(&builder); err != nil {
			return nil, fmt.Errorf("failed to render article text: %w", err)
		}
		text := builder.String()

		s.cacheMu.Lock()
		s.cache[pageURL] = text
		s.cacheMu.Unlock()

		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
