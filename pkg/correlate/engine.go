// Package correlate is the public face of the correlation engine. It owns
// the article store and composes the entity extractor, similarity index,
// knowledge graph and story engine behind one API: ingest articles, then
// query connections, timelines and statistics.
//
// Concurrency model: one writer, many readers. Ingestion applies each
// article's node, edge and story updates under a single write lock so
// readers never observe a half-applied article. Model calls for enrichment
// happen before the lock is taken.
package correlate

import (
	"sync"
	"time"

	"github.com/vigil-intel/vigil/internal/util"
	"github.com/vigil-intel/vigil/pkg/ai"
	"github.com/vigil-intel/vigil/pkg/common"
	"github.com/vigil-intel/vigil/pkg/graph"
	"github.com/vigil-intel/vigil/pkg/intel"
	"github.com/vigil-intel/vigil/pkg/similarity"
	"github.com/vigil-intel/vigil/pkg/story"
)

// Config tunes the correlation thresholds. Zero values fall back to the
// defaults below.
type Config struct {
	// RelatedThreshold is the minimum cosine similarity for a
	// similar-article edge.
	RelatedThreshold float64

	// SameStoryThreshold is the minimum cosine similarity for the
	// embedding signal to place two articles in the same story.
	SameStoryThreshold float64

	// MaxRelated caps the similar-article edges added per ingested
	// article.
	MaxRelated int

	// MaxEnrichConcurrency bounds parallel model calls during batch
	// ingestion.
	MaxEnrichConcurrency int

	// AnalysisModel overrides the client's default model for the
	// extraction pass.
	AnalysisModel string
}

const (
	defaultRelatedThreshold   = 0.75
	defaultSameStoryThreshold = 0.90
	defaultMaxRelated         = 5
	defaultEnrichConcurrency  = 4

	// relatedPeerCap bounds the shared-entity edges added per entity so a
	// widely covered CVE does not produce quadratic edge growth.
	relatedPeerCap = 5

	enrichTries = 2
)

// ConfigFromEnv reads the thresholds from the environment.
func ConfigFromEnv() Config {
	return Config{
		RelatedThreshold:     util.GetEnvNumeric("CORRELATE_RELATED_THRESHOLD", 0),
		SameStoryThreshold:   util.GetEnvNumeric("CORRELATE_SAME_STORY_THRESHOLD", 0),
		MaxRelated:           int(util.GetEnvNumeric("CORRELATE_MAX_RELATED", 0)),
		MaxEnrichConcurrency: int(util.GetEnvNumeric("CORRELATE_ENRICH_CONCURRENCY", 0)),
		AnalysisModel:        util.GetEnv("AI_ANALYSIS_MODEL"),
	}
}

func (c Config) withDefaults() Config {
	if c.RelatedThreshold <= 0 {
		c.RelatedThreshold = defaultRelatedThreshold
	}
	if c.SameStoryThreshold <= 0 {
		c.SameStoryThreshold = defaultSameStoryThreshold
	}
	if c.MaxRelated <= 0 {
		c.MaxRelated = defaultMaxRelated
	}
	if c.MaxEnrichConcurrency <= 0 {
		c.MaxEnrichConcurrency = defaultEnrichConcurrency
	}
	return c
}

// Engine is safe for concurrent use.
type Engine struct {
	cfg       Config
	client    ai.Client
	extractor *intel.Extractor

	mu       sync.RWMutex
	articles map[string]*common.Article
	order    []string

	graph   *graph.Store
	index   similarity.Index
	stories *story.Engine

	now func() time.Time
}

func NewEngine(client ai.Client, cfg Config) *Engine {
	e := &Engine{
		cfg:      cfg.withDefaults(),
		client:   client,
		articles: make(map[string]*common.Article),
		graph:    graph.NewStore(),
		index:    similarity.NewLinearIndex(),
		now:      time.Now,
	}
	e.extractor = intel.NewExtractor(client, e.cfg.AnalysisModel)
	e.stories = story.NewEngine(e.resolveArticle)
	return e
}

// resolveArticle feeds the story engine. It is only called while the
// engine lock is already held, so it reads the map directly.
func (e *Engine) resolveArticle(id string) (*common.Article, bool) {
	a, ok := e.articles[id]
	return a, ok
}

// Graph exposes the underlying knowledge graph for read-only use.
func (e *Engine) Graph() *graph.Store {
	return e.graph
}

// Metrics reports accumulated model usage.
func (e *Engine) Metrics() ai.ModelMetrics {
	return e.client.GetMetrics()
}
