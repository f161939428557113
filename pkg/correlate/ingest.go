package correlate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vigil-intel/vigil/internal/util"
	"github.com/vigil-intel/vigil/pkg/common"
	"github.com/vigil-intel/vigil/pkg/graph"
	"github.com/vigil-intel/vigil/pkg/intel"
	"github.com/vigil-intel/vigil/pkg/logger"
	"github.com/vigil-intel/vigil/pkg/story"
)

const embedTokenLimit = 6000

// IngestResult reports what happened to one submitted article.
type IngestResult struct {
	ArticleID string `json:"article_id"`
	StoryID   string `json:"story_id"`
	Duplicate bool   `json:"duplicate"`
	Degraded  bool   `json:"degraded"`
}

// enrichment is the model-derived data for one article, produced outside
// the engine lock.
type enrichment struct {
	summary   string
	entities  common.EntitySet
	embedding []float32
	degraded  bool
}

// Ingest runs the full pipeline for one article: enrichment through the
// model, then an atomic update of store, index, graph and story state.
// Re-ingesting a known article ID is a no-op returning the existing
// assignment.
func (e *Engine) Ingest(ctx context.Context, article *common.Article) (IngestResult, error) {
	if err := validate(article); err != nil {
		return IngestResult{}, err
	}
	if result, dup := e.duplicateOf(article.ID); dup {
		logger.Debug("skipping duplicate article", "article", article.ID)
		return result, nil
	}

	enr := e.enrich(ctx, article)
	if err := ctx.Err(); err != nil {
		return IngestResult{}, err
	}
	return e.apply(article, enr), nil
}

// IngestBatch processes a batch: enrichment runs concurrently with bounded
// parallelism, application stays sequential in input order so results are
// deterministic. Results align with the input slice.
func (e *Engine) IngestBatch(ctx context.Context, articles []*common.Article) ([]IngestResult, error) {
	for _, article := range articles {
		if err := validate(article); err != nil {
			return nil, fmt.Errorf("article %q: %w", article.URL, err)
		}
	}

	enrichments := make([]enrichment, len(articles))
	seen := make(map[string]struct{}, len(articles))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.MaxEnrichConcurrency)
	for i, article := range articles {
		if _, known := e.duplicateOf(article.ID); known {
			continue
		}
		if _, inBatch := seen[article.ID]; inBatch {
			continue
		}
		seen[article.ID] = struct{}{}

		group.Go(func() error {
			enrichments[i] = e.enrich(groupCtx, article)
			return groupCtx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	results := make([]IngestResult, len(articles))
	for i, article := range articles {
		if result, dup := e.duplicateOf(article.ID); dup {
			results[i] = result
			continue
		}
		results[i] = e.apply(article, enrichments[i])
	}
	return results, nil
}

func validate(article *common.Article) error {
	if article == nil || article.ID == "" {
		return fmt.Errorf("%w: missing article ID", ErrInvalidArticle)
	}
	if strings.TrimSpace(article.Title) == "" && strings.TrimSpace(article.Content) == "" {
		return fmt.Errorf("%w: article %s has no text", ErrInvalidArticle, article.ID)
	}
	return nil
}

func (e *Engine) duplicateOf(id string) (IngestResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	existing, ok := e.articles[id]
	if !ok {
		return IngestResult{}, false
	}
	return IngestResult{
		ArticleID: existing.ID,
		StoryID:   existing.StoryID,
		Duplicate: true,
		Degraded:  existing.Degraded,
	}, true
}

// enrich calls the model for the analysis pass and the embedding, each with
// one retry. Failures degrade the article instead of blocking ingestion:
// entities fall back to pattern extraction and the embedding stays empty.
func (e *Engine) enrich(ctx context.Context, article *common.Article) enrichment {
	var enr enrichment

	analysis, err := util.RetryWithContext(ctx, enrichTries, func(ctx context.Context) (intel.Analysis, error) {
		return e.extractor.Analyze(ctx, article.Title, article.Content)
	})
	if err != nil {
		logger.Warn("entity extraction failed, using fallback",
			"article", article.ID, "error", err)
		enr.entities = intel.FallbackEntities(article.Title, article.Content)
		enr.degraded = true
	} else {
		enr.summary = analysis.Summary
		enr.entities = analysis.Entities
	}

	input := util.TruncateTokens(
		util.CollapseWhitespace(article.Title+" "+article.Content),
		"cl100k_base", embedTokenLimit)
	embedding, err := util.RetryWithContext(ctx, enrichTries, func(ctx context.Context) ([]float32, error) {
		return e.client.GenerateEmbedding(ctx, []byte(input))
	})
	if err != nil {
		logger.Warn("embedding failed, similarity disabled for article",
			"article", article.ID, "error", err)
		enr.degraded = true
	} else {
		enr.embedding = embedding
	}
	return enr
}

// apply commits one enriched article. Everything in here happens under the
// write lock so readers see either none or all of the article's effects.
func (e *Engine) apply(article *common.Article, enr enrichment) IngestResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, dup := e.articles[article.ID]; dup {
		return IngestResult{
			ArticleID: existing.ID,
			StoryID:   existing.StoryID,
			Duplicate: true,
			Degraded:  existing.Degraded,
		}
	}

	stored := *article
	stored.IngestedAt = e.now().UTC()
	if stored.PublishedAt.IsZero() {
		stored.PublishedAt = stored.IngestedAt
	}
	if enr.summary != "" {
		stored.Summary = enr.summary
	}
	stored.Vulnerabilities = enr.entities.Vulnerabilities
	stored.ThreatActors = enr.entities.ThreatActors
	stored.Techniques = enr.entities.Techniques
	stored.Sectors = enr.entities.Sectors
	stored.Categories = enr.entities.Categories
	stored.Embedding = enr.embedding
	stored.Degraded = enr.degraded

	// Query before inserting so the article does not match itself.
	matches := e.index.QueryNearest(stored.Embedding, e.cfg.MaxRelated, e.cfg.RelatedThreshold, stored.ID)

	e.articles[stored.ID] = &stored
	e.order = append(e.order, stored.ID)
	e.index.Upsert(stored.ID, stored.Embedding, stored.PublishedAt)

	e.graph.AddArticleNode(&stored)
	peers := e.linkEntities(&stored)

	for _, m := range matches {
		e.addEdge(stored.ID, m.ID, graph.RelSimilarTo, m.Score)
	}
	for peer := range peers {
		e.addEdge(stored.ID, peer, graph.RelRelatedTo, 1.0)
	}

	var sameStory []string
	for _, m := range matches {
		if m.Score >= e.cfg.SameStoryThreshold {
			sameStory = append(sameStory, m.ID)
		}
	}
	stored.StoryID = e.stories.Assign(&stored, sameStory)

	if prev, ok := e.previousMember(&stored); ok {
		e.addEdge(stored.ID, prev, graph.RelEvolvesFrom, 1.0)
	}

	logger.Info("article ingested",
		"article", stored.ID,
		"story", stored.StoryID,
		"entities", len(stored.Vulnerabilities)+len(stored.ThreatActors),
		"degraded", stored.Degraded)

	return IngestResult{
		ArticleID: stored.ID,
		StoryID:   stored.StoryID,
		Degraded:  stored.Degraded,
	}
}

// linkEntities adds the article's entity nodes and mentions edges. It
// returns the set of earlier articles sharing a vulnerability or threat
// actor, capped per entity, for related-article edges.
func (e *Engine) linkEntities(article *common.Article) map[string]struct{} {
	peers := make(map[string]struct{})

	link := func(nodeType graph.NodeType, labels []string, collectPeers bool) {
		for _, label := range labels {
			node := e.graph.AddEntityNode(nodeType, label)
			if collectPeers {
				mentioning := e.graph.ArticlesMentioning(node.ID)
				if len(mentioning) > relatedPeerCap {
					mentioning = mentioning[len(mentioning)-relatedPeerCap:]
				}
				for _, peer := range mentioning {
					peers[peer] = struct{}{}
				}
			}
			e.addEdge(article.ID, node.ID, graph.RelMentions, 1.0)
		}
	}

	link(graph.NodeVulnerability, article.Vulnerabilities, true)
	link(graph.NodeThreatActor, article.ThreatActors, true)
	link(graph.NodeTechnique, article.Techniques, false)
	link(graph.NodeSector, article.Sectors, false)
	link(graph.NodeCategory, article.Categories, false)

	event := story.EventFor(article)
	if event.EventType == story.EventExploitSeen || event.EventType == story.EventActiveAttack {
		for _, vuln := range article.Vulnerabilities {
			e.addEdge(article.ID, graph.EntityNodeID(graph.NodeVulnerability, vuln), graph.RelExploits, 1.0)
		}
	}

	delete(peers, article.ID)
	return peers
}

// previousMember returns the story member immediately preceding the
// article in chronological order.
func (e *Engine) previousMember(article *common.Article) (string, bool) {
	s, ok := e.stories.Get(article.StoryID)
	if !ok {
		return "", false
	}
	for i, id := range s.ArticleIDs {
		if id == article.ID && i > 0 {
			return s.ArticleIDs[i-1], true
		}
	}
	return "", false
}

// addEdge inserts a graph edge. Both endpoints are created by apply before
// any edge referencing them, so a failure here is a broken invariant; the
// store already logs it and we keep the article rather than drop it.
func (e *Engine) addEdge(source, target string, rel graph.Relationship, weight float64) {
	_ = e.graph.AddEdge(source, target, rel, weight)
}
