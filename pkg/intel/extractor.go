// Package intel turns raw article text into structured intelligence: a short
// summary plus typed security entities. The primary path asks a language
// model for schema-constrained output; a regex and keyword fallback covers
// the case where the model is unavailable or returns garbage.
package intel

import (
	"context"
	"fmt"
	"strings"

	"github.com/vigil-intel/vigil/internal/util"
	"github.com/vigil-intel/vigil/pkg/ai"
	"github.com/vigil-intel/vigil/pkg/common"
)

const (
	promptEncoding  = "cl100k_base"
	maxPromptTokens = 6000
)

// Analysis is the enrichment produced for one article.
type Analysis struct {
	Summary  string
	Entities common.EntitySet
}

type analysisResult struct {
	Summary         string   `json:"summary" jsonschema_description:"2-3 sentence summary of the article"`
	Vulnerabilities []string `json:"vulnerabilities" jsonschema_description:"CVE identifiers mentioned in the text"`
	ThreatActors    []string `json:"threat_actors" jsonschema_description:"Named threat actor groups or campaigns"`
	Techniques      []string `json:"techniques" jsonschema_description:"Attack techniques or malware families"`
	Sectors         []string `json:"sectors" jsonschema_description:"Targeted industry sectors"`
	Categories      []string `json:"categories" jsonschema_description:"Broad article tags, lowercase"`
}

// Extractor runs the model-backed analysis pass.
type Extractor struct {
	client ai.Client
	model  string
}

// NewExtractor creates an Extractor on top of the given client. model may be
// empty to use the client's default analysis model.
func NewExtractor(client ai.Client, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// Analyze summarizes the article and extracts its entities. Empty input
// short-circuits to an empty result without a model call. A non-nil error
// means the caller should fall back to FallbackEntities and mark the
// article degraded.
func (x *Extractor) Analyze(ctx context.Context, title, content string) (Analysis, error) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(content) == "" {
		return Analysis{}, nil
	}

	body := util.TruncateTokens(content, promptEncoding, maxPromptTokens)
	prompt := fmt.Sprintf("Title: %s\n\nContent:\n%s", title, body)

	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(ai.AnalyzePrompt),
		ai.WithTemperature(0.2),
	}
	if x.model != "" {
		opts = append(opts, ai.WithModel(x.model))
	}

	var result analysisResult
	err := x.client.GenerateCompletionWithFormat(
		ctx,
		"article_analysis",
		"Summary and extracted security entities for one news article.",
		prompt,
		&result,
		opts...,
	)
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze article: %w", err)
	}

	return Analysis{
		Summary: strings.TrimSpace(result.Summary),
		Entities: common.EntitySet{
			Vulnerabilities: normalize(result.Vulnerabilities, strings.ToUpper),
			ThreatActors:    normalize(result.ThreatActors, strings.ToLower),
			Techniques:      normalize(result.Techniques, strings.ToLower),
			Sectors:         normalize(result.Sectors, strings.ToLower),
			Categories:      normalize(result.Categories, strings.ToLower),
		},
	}, nil
}

// normalize trims, case-folds and deduplicates while keeping first-seen
// order. Empty values are dropped.
func normalize(values []string, fold func(string) string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = fold(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
