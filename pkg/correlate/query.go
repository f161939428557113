package correlate

import (
	"fmt"
	"strings"

	"github.com/vigil-intel/vigil/pkg/common"
	"github.com/vigil-intel/vigil/pkg/story"
)

// Stats is the engine-wide summary exposed to callers.
type Stats struct {
	Articles int               `json:"articles"`
	Stories  int               `json:"stories"`
	Graph    common.GraphStats `json:"graph"`
}

// GetArticle returns a copy of the stored article.
func (e *Engine) GetArticle(id string) (*common.Article, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	article, ok := e.articles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *article
	return &copied, nil
}

// ListArticles returns stored articles, newest first. limit <= 0 returns
// everything.
func (e *Engine) ListArticles(limit int) []*common.Article {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*common.Article, 0, len(e.order))
	for i := len(e.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		copied := *e.articles[e.order[i]]
		out = append(out, &copied)
	}
	return out
}

// SearchArticles returns articles whose title, summary or entities contain
// the query, case-insensitive, newest first.
func (e *Engine) SearchArticles(query string, limit int) []*common.Article {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return e.ListArticles(limit)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*common.Article, 0)
	for i := len(e.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		article := e.articles[e.order[i]]
		if articleMatches(article, query) {
			copied := *article
			out = append(out, &copied)
		}
	}
	return out
}

func articleMatches(article *common.Article, query string) bool {
	if strings.Contains(strings.ToLower(article.Title), query) ||
		strings.Contains(strings.ToLower(article.Summary), query) {
		return true
	}
	for _, group := range [][]string{
		article.Vulnerabilities,
		article.ThreatActors,
		article.Techniques,
		article.Sectors,
		article.Categories,
	} {
		for _, entity := range group {
			if strings.Contains(strings.ToLower(entity), query) {
				return true
			}
		}
	}
	return false
}

// GetConnections returns the depth-bounded graph neighborhood around an
// article.
func (e *Engine) GetConnections(articleID string, depth int) (common.GraphView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.articles[articleID]; !ok {
		return common.GraphView{}, fmt.Errorf("%w: %s", ErrNotFound, articleID)
	}
	view, _ := e.graph.Neighbors(articleID, depth)
	return view, nil
}

// GetTimeline returns the timeline of the story an article belongs to. An
// article without a story assignment yields a single-event timeline rather
// than an error.
func (e *Engine) GetTimeline(articleID string) (common.StoryTimeline, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	article, ok := e.articles[articleID]
	if !ok {
		return common.StoryTimeline{}, fmt.Errorf("%w: %s", ErrNotFound, articleID)
	}
	if article.StoryID == "" {
		return story.SingleTimeline(article), nil
	}
	timeline, ok := e.stories.Timeline(article.StoryID)
	if !ok {
		return story.SingleTimeline(article), nil
	}
	return timeline, nil
}

// GetStats summarizes the engine state.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	articles := len(e.articles)
	e.mu.RUnlock()

	return Stats{
		Articles: articles,
		Stories:  e.stories.Count(),
		Graph:    e.graph.Statistics(),
	}
}
