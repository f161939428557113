package correlate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vigil-intel/vigil/pkg/ai"
	"github.com/vigil-intel/vigil/pkg/common"
	"github.com/vigil-intel/vigil/pkg/story"
)

// analysisPayload mirrors the wire shape of the analysis pass.
type analysisPayload struct {
	Summary         string   `json:"summary"`
	Vulnerabilities []string `json:"vulnerabilities"`
	ThreatActors    []string `json:"threat_actors"`
	Techniques      []string `json:"techniques"`
	Sectors         []string `json:"sectors"`
	Categories      []string `json:"categories"`
}

// scriptedClient serves canned analyses and embeddings keyed by a substring
// of the request text. It can be told to fail the first N calls of each
// kind.
type scriptedClient struct {
	mu           sync.Mutex
	analyses     map[string]analysisPayload
	embeddings   map[string][]float32
	analyzeFails int
	embedFails   int
	analyzeCalls int
	embedCalls   int
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{
		analyses:   make(map[string]analysisPayload),
		embeddings: make(map[string][]float32),
	}
}

func (c *scriptedClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not scripted")
}

func (c *scriptedClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.analyzeCalls++
	if c.analyzeFails > 0 {
		c.analyzeFails--
		return errors.New("scripted analysis failure")
	}
	for key, payload := range c.analyses {
		if strings.Contains(prompt, key) {
			raw, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			return json.Unmarshal(raw, out)
		}
	}
	return json.Unmarshal([]byte(`{}`), out)
}

func (c *scriptedClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.embedCalls++
	if c.embedFails > 0 {
		c.embedFails--
		return nil, errors.New("scripted embedding failure")
	}
	for key, vector := range c.embeddings {
		if strings.Contains(string(input), key) {
			return vector, nil
		}
	}
	return []float32{0, 0, 1}, nil
}

func (c *scriptedClient) ResetMetrics()               {}
func (c *scriptedClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (c *scriptedClient) script(title string, payload analysisPayload, embedding []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyses[title] = payload
	if embedding != nil {
		c.embeddings[title] = embedding
	}
}

func testArticle(id, title string, day int) *common.Article {
	return &common.Article{
		ID:          id,
		Title:       title,
		URL:         "https://example.com/" + id,
		Content:     title + " full article text.",
		PublishedAt: time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
	}
}

func mustIngest(t *testing.T, e *Engine, article *common.Article) IngestResult {
	t.Helper()
	result, err := e.Ingest(context.Background(), article)
	if err != nil {
		t.Fatalf("Ingest(%s) error = %v", article.ID, err)
	}
	return result
}

// Scenario from the product brief: two Apache Struts articles share a CVE
// and must land in one story in chronological order, an unrelated phishing
// article stays alone, and the CVE entity node connects both Struts
// articles.
func TestIngestScenario(t *testing.T) {
	client := newScriptedClient()
	client.script("Apache Struts RCE disclosed", analysisPayload{
		Summary:         "RCE in Apache Struts.",
		Vulnerabilities: []string{"CVE-2024-0001"},
	}, []float32{1, 0, 0})
	client.script("New exploit kit targets CVE-2024-0001", analysisPayload{
		Summary:         "Exploit kit for the Struts flaw.",
		Vulnerabilities: []string{"CVE-2024-0001"},
	}, []float32{0, 1, 0})
	client.script("Unrelated phishing campaign", analysisPayload{
		Summary:    "Phishing wave.",
		Categories: []string{"phishing"},
	}, []float32{0, 0, 1})

	e := NewEngine(client, Config{})
	r1 := mustIngest(t, e, testArticle("art-1", "Apache Struts RCE disclosed", 1))
	r3 := mustIngest(t, e, testArticle("art-3", "Unrelated phishing campaign", 2))
	r2 := mustIngest(t, e, testArticle("art-2", "New exploit kit targets CVE-2024-0001", 4))

	if r1.StoryID != r2.StoryID {
		t.Errorf("stories differ (%q, %q), want shared CVE to join them", r1.StoryID, r2.StoryID)
	}
	if r3.StoryID == r1.StoryID {
		t.Error("unrelated article joined the Struts story")
	}

	timeline, err := e.GetTimeline("art-2")
	if err != nil {
		t.Fatalf("GetTimeline() error = %v", err)
	}
	if len(timeline.Events) != 2 ||
		timeline.Events[0].ArticleID != "art-1" ||
		timeline.Events[1].ArticleID != "art-2" {
		t.Errorf("timeline order = %+v, want [art-1 art-2]", timeline.Events)
	}
	if timeline.Events[0].EventType != story.EventDisclosure {
		t.Errorf("first event type = %q, want disclosure", timeline.Events[0].EventType)
	}
	if timeline.CurrentStatus != story.EventExploitSeen {
		t.Errorf("current status = %q, want exploit_seen", timeline.CurrentStatus)
	}

	view, err := e.GetConnections("art-1", 1)
	if err != nil {
		t.Fatalf("GetConnections() error = %v", err)
	}
	cveNode := "vulnerability-cve-2024-0001"
	var hasNode bool
	for _, n := range view.Nodes {
		if n.ID == cveNode {
			hasNode = true
		}
	}
	if !hasNode {
		t.Fatalf("connections of art-1 missing CVE entity node, got %+v", view.Nodes)
	}
	mentions := map[string]bool{}
	for _, edge := range view.Edges {
		if edge.Target == cveNode && edge.Relationship == "mentions" {
			mentions[edge.Source] = true
		}
	}
	if !mentions["art-1"] || !mentions["art-2"] {
		t.Errorf("mentions edges = %v, want both Struts articles", mentions)
	}
}

func TestIngestIdempotent(t *testing.T) {
	client := newScriptedClient()
	client.script("Struts flaw", analysisPayload{
		Vulnerabilities: []string{"CVE-2024-0001"},
	}, []float32{1, 0, 0})

	e := NewEngine(client, Config{})
	first := mustIngest(t, e, testArticle("art-1", "Struts flaw", 1))
	statsBefore := e.GetStats()
	callsBefore := client.analyzeCalls

	again := mustIngest(t, e, testArticle("art-1", "Struts flaw", 1))
	if !again.Duplicate {
		t.Error("re-ingest not flagged as duplicate")
	}
	if again.StoryID != first.StoryID {
		t.Errorf("duplicate story = %q, want %q", again.StoryID, first.StoryID)
	}
	if client.analyzeCalls != callsBefore {
		t.Error("duplicate ingest called the model")
	}
	if statsAfter := e.GetStats(); !reflect.DeepEqual(statsAfter, statsBefore) {
		t.Errorf("stats changed on duplicate: %+v -> %+v", statsBefore, statsAfter)
	}
}

func TestIngestEntityDedup(t *testing.T) {
	client := newScriptedClient()
	client.script("First report", analysisPayload{
		Vulnerabilities: []string{"CVE-2024-0001"},
	}, []float32{1, 0, 0})
	client.script("Second report", analysisPayload{
		Vulnerabilities: []string{"cve-2024-0001"},
	}, []float32{0, 1, 0})

	e := NewEngine(client, Config{})
	mustIngest(t, e, testArticle("art-1", "First report", 1))
	mustIngest(t, e, testArticle("art-2", "Second report", 2))

	stats := e.GetStats()
	if got := stats.Graph.CountsByType["vulnerability"]; got != 1 {
		t.Errorf("vulnerability node count = %d, want 1", got)
	}
}

func TestIngestDegradedFallback(t *testing.T) {
	client := newScriptedClient()
	client.analyzeFails = enrichTries // both attempts fail
	client.embeddings["CVE-2024-0001"] = []float32{1, 0, 0}

	e := NewEngine(client, Config{})
	article := testArticle("art-1", "Attackers hit CVE-2024-0001", 1)
	result := mustIngest(t, e, article)

	if !result.Degraded {
		t.Error("result not flagged degraded after extraction failure")
	}
	stored, err := e.GetArticle("art-1")
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if !stored.Degraded {
		t.Error("stored article not flagged degraded")
	}
	// The pattern fallback still finds the CVE, so the graph has the
	// entity and a later clean article can join by entity overlap.
	if len(stored.Vulnerabilities) != 1 || stored.Vulnerabilities[0] != "CVE-2024-0001" {
		t.Errorf("fallback vulnerabilities = %v, want [CVE-2024-0001]", stored.Vulnerabilities)
	}

	client.script("Follow-up report", analysisPayload{
		Vulnerabilities: []string{"CVE-2024-0001"},
	}, []float32{0, 1, 0})
	followUp := mustIngest(t, e, testArticle("art-2", "Follow-up report", 2))
	if followUp.StoryID != result.StoryID {
		t.Error("clean follow-up did not join the degraded article's story")
	}
}

func TestIngestRetriesOnce(t *testing.T) {
	client := newScriptedClient()
	client.analyzeFails = 1
	client.script("Flaky analysis", analysisPayload{
		Vulnerabilities: []string{"CVE-2024-0001"},
	}, []float32{1, 0, 0})

	e := NewEngine(client, Config{})
	result := mustIngest(t, e, testArticle("art-1", "Flaky analysis", 1))

	if result.Degraded {
		t.Error("single transient failure degraded the article")
	}
	if client.analyzeCalls != 2 {
		t.Errorf("analyze calls = %d, want 2 (one retry)", client.analyzeCalls)
	}
}

func TestIngestEmbeddingSignals(t *testing.T) {
	client := newScriptedClient()
	client.script("Base article", analysisPayload{}, []float32{1, 0, 0})
	// Cosine 1.0 against base: same story.
	client.script("Near duplicate", analysisPayload{}, []float32{1, 0, 0})
	// Cosine 0.8 against base: related but a separate story.
	client.script("Loose relative", analysisPayload{}, []float32{0.8, 0.6, 0})

	e := NewEngine(client, Config{})
	base := mustIngest(t, e, testArticle("art-1", "Base article", 1))
	near := mustIngest(t, e, testArticle("art-2", "Near duplicate", 2))
	loose := mustIngest(t, e, testArticle("art-3", "Loose relative", 3))

	if near.StoryID != base.StoryID {
		t.Error("high-similarity article not placed in the same story")
	}
	if loose.StoryID == base.StoryID {
		t.Error("mid-similarity article joined the story, want separate")
	}

	view, err := e.GetConnections("art-3", 1)
	if err != nil {
		t.Fatalf("GetConnections() error = %v", err)
	}
	var similar *common.GraphEdgeView
	for i, edge := range view.Edges {
		if edge.Relationship == "similar_to" && edge.Source == "art-3" && edge.Target == "art-1" {
			similar = &view.Edges[i]
		}
	}
	if similar == nil {
		t.Fatal("missing similar_to edge from art-3 to art-1")
	}
	if math.Abs(similar.Weight-0.8) > 1e-6 {
		t.Errorf("similar_to weight = %v, want cosine 0.8", similar.Weight)
	}
}

func TestIngestMergesBridgedStories(t *testing.T) {
	client := newScriptedClient()
	client.script("CVE coverage", analysisPayload{
		Vulnerabilities: []string{"CVE-2024-0001"},
	}, []float32{1, 0, 0})
	client.script("Actor profile", analysisPayload{
		ThreatActors: []string{"fin7"},
	}, []float32{0, 1, 0})
	client.script("Actor exploits CVE", analysisPayload{
		Vulnerabilities: []string{"CVE-2024-0001"},
		ThreatActors:    []string{"fin7"},
	}, []float32{0, 0, 1})

	e := NewEngine(client, Config{})
	a := mustIngest(t, e, testArticle("art-1", "CVE coverage", 1))
	b := mustIngest(t, e, testArticle("art-2", "Actor profile", 3))
	if a.StoryID == b.StoryID {
		t.Fatal("setup stories unexpectedly joined")
	}

	bridge := mustIngest(t, e, testArticle("art-3", "Actor exploits CVE", 5))
	if bridge.StoryID != a.StoryID {
		t.Errorf("merged story = %q, want the older story %q", bridge.StoryID, a.StoryID)
	}
	if stats := e.GetStats(); stats.Stories != 1 {
		t.Errorf("story count = %d, want 1 after merge", stats.Stories)
	}

	timeline, _ := e.GetTimeline("art-2")
	var order []string
	for _, event := range timeline.Events {
		order = append(order, event.ArticleID)
	}
	want := "art-1 art-2 art-3"
	if strings.Join(order, " ") != want {
		t.Errorf("merged timeline order = %v, want %s", order, want)
	}
}

func TestIngestExploitEdge(t *testing.T) {
	client := newScriptedClient()
	client.script("Exploit released for router flaw", analysisPayload{
		Vulnerabilities: []string{"CVE-2024-0001"},
	}, []float32{1, 0, 0})

	e := NewEngine(client, Config{})
	mustIngest(t, e, testArticle("art-1", "Exploit released for router flaw", 1))

	view, _ := e.GetConnections("art-1", 1)
	var hasExploits bool
	for _, edge := range view.Edges {
		if edge.Relationship == "exploits" && edge.Target == "vulnerability-cve-2024-0001" {
			hasExploits = true
		}
	}
	if !hasExploits {
		t.Errorf("edges = %+v, want exploits edge to the CVE node", view.Edges)
	}
}

func TestIngestInvalidArticle(t *testing.T) {
	e := NewEngine(newScriptedClient(), Config{})

	tests := []struct {
		name    string
		article *common.Article
	}{
		{"nil article", nil},
		{"missing ID", &common.Article{Title: "x"}},
		{"no text", &common.Article{ID: "art-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Ingest(context.Background(), tt.article); !errors.Is(err, ErrInvalidArticle) {
				t.Errorf("Ingest() error = %v, want ErrInvalidArticle", err)
			}
		})
	}
}

func TestIngestBatch(t *testing.T) {
	client := newScriptedClient()
	for i := 1; i <= 3; i++ {
		client.script(fmt.Sprintf("Batch article %d", i), analysisPayload{
			Vulnerabilities: []string{"CVE-2024-0001"},
		}, []float32{float32(i), 0, 0})
	}

	e := NewEngine(client, Config{})
	mustIngest(t, e, testArticle("art-1", "Batch article 1", 1))

	batch := []*common.Article{
		testArticle("art-1", "Batch article 1", 1), // already known
		testArticle("art-2", "Batch article 2", 2),
		testArticle("art-2", "Batch article 2", 2), // duplicate within batch
		testArticle("art-3", "Batch article 3", 3),
	}
	results, err := e.IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if len(results) != len(batch) {
		t.Fatalf("result count = %d, want %d", len(results), len(batch))
	}

	if !results[0].Duplicate || !results[2].Duplicate {
		t.Errorf("duplicate flags = [%v %v %v %v], want entries 0 and 2 flagged",
			results[0].Duplicate, results[1].Duplicate, results[2].Duplicate, results[3].Duplicate)
	}
	if results[1].Duplicate || results[3].Duplicate {
		t.Error("fresh batch entries flagged as duplicates")
	}
	if stats := e.GetStats(); stats.Articles != 3 {
		t.Errorf("article count = %d, want 3", stats.Articles)
	}
}

func TestGetConnectionsUnknownArticle(t *testing.T) {
	e := NewEngine(newScriptedClient(), Config{})
	if _, err := e.GetConnections("art-ghost", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetConnections() error = %v, want ErrNotFound", err)
	}
}

func TestGetTimelineUnknownArticle(t *testing.T) {
	e := NewEngine(newScriptedClient(), Config{})
	if _, err := e.GetTimeline("art-ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTimeline() error = %v, want ErrNotFound", err)
	}
}

func TestSearchArticles(t *testing.T) {
	client := newScriptedClient()
	client.script("Struts flaw analyzed", analysisPayload{
		Vulnerabilities: []string{"CVE-2024-0001"},
	}, []float32{1, 0, 0})
	client.script("Phishing wave", analysisPayload{
		Categories: []string{"phishing"},
	}, []float32{0, 1, 0})

	e := NewEngine(client, Config{})
	mustIngest(t, e, testArticle("art-1", "Struts flaw analyzed", 1))
	mustIngest(t, e, testArticle("art-2", "Phishing wave", 2))

	tests := []struct {
		query string
		want  []string
	}{
		{"struts", []string{"art-1"}},
		{"cve-2024-0001", []string{"art-1"}},
		{"phishing", []string{"art-2"}},
		{"", []string{"art-2", "art-1"}}, // newest first
		{"nothing matches this", nil},
	}
	for _, tt := range tests {
		var got []string
		for _, a := range e.SearchArticles(tt.query, 0) {
			got = append(got, a.ID)
		}
		if strings.Join(got, " ") != strings.Join(tt.want, " ") {
			t.Errorf("SearchArticles(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestListArticlesLimit(t *testing.T) {
	client := newScriptedClient()
	e := NewEngine(client, Config{})
	for i := 1; i <= 4; i++ {
		title := fmt.Sprintf("Report %d", i)
		client.script(title, analysisPayload{}, []float32{0, 0, float32(i)})
		mustIngest(t, e, testArticle(fmt.Sprintf("art-%d", i), title, i))
	}

	got := e.ListArticles(2)
	if len(got) != 2 || got[0].ID != "art-4" || got[1].ID != "art-3" {
		t.Errorf("ListArticles(2) = %v, want the two newest", got)
	}
}
