package common

import "time"

// Article is the unit of ingestion: one security news story as delivered by
// the feed, enriched once by the intelligence step (summary, entities,
// embedding) and immutable afterwards.
//
// Articles are never deleted within a process lifetime. The Degraded flag
// marks articles whose enrichment failed; they are still stored and
// queryable, and can join stories through entity overlap.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	IngestedAt  time.Time `json:"ingested_at"`

	Categories      []string `json:"categories,omitempty"`
	Vulnerabilities []string `json:"vulnerabilities,omitempty"`
	ThreatActors    []string `json:"threat_actors,omitempty"`
	Techniques      []string `json:"techniques,omitempty"`
	Sectors         []string `json:"sectors,omitempty"`

	Embedding []float32 `json:"-"`
	Degraded  bool      `json:"degraded,omitempty"`

	StoryID string `json:"story_id,omitempty"`
}

// EntitySet holds the typed entities extracted from one article. Each list
// is deduplicated and case-normalized: vulnerability identifiers are
// upper-cased, everything else lower-cased.
type EntitySet struct {
	Vulnerabilities []string `json:"vulnerabilities"`
	ThreatActors    []string `json:"threat_actors"`
	Techniques      []string `json:"techniques"`
	Sectors         []string `json:"sectors"`
	Categories      []string `json:"categories"`
}

// Empty reports whether the set contains no entities at all.
func (s EntitySet) Empty() bool {
	return len(s.Vulnerabilities) == 0 &&
		len(s.ThreatActors) == 0 &&
		len(s.Techniques) == 0 &&
		len(s.Sectors) == 0 &&
		len(s.Categories) == 0
}

// GraphNodeView is the wire shape of a graph node returned to callers.
type GraphNodeView struct {
	ID         string            `json:"id"`
	Type       string            `json:"node_type"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
}

// GraphEdgeView is the wire shape of a graph edge returned to callers.
type GraphEdgeView struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Relationship string  `json:"relationship"`
	Weight       float64 `json:"weight"`
}

// GraphView is a depth-bounded neighborhood around a focus node, in the
// shape the UI renders directly.
type GraphView struct {
	Nodes      []GraphNodeView `json:"nodes"`
	Edges      []GraphEdgeView `json:"edges"`
	FocusNode  string          `json:"focus_node"`
	Depth      int             `json:"depth"`
	TotalNodes int             `json:"total_nodes"`
	TotalEdges int             `json:"total_edges"`
}

// GraphStats summarizes the size of the knowledge graph.
type GraphStats struct {
	NodeCount    int            `json:"node_count"`
	EdgeCount    int            `json:"edge_count"`
	CountsByType map[string]int `json:"counts_by_type"`
}

// TimelineEvent is a derived view of one story member. It is computed on
// demand and never stored.
type TimelineEvent struct {
	ArticleID string    `json:"article_id"`
	Title     string    `json:"title"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
}

// StoryTimeline is the chronological view of a story: its members as
// classified events, oldest first.
type StoryTimeline struct {
	StoryID       string          `json:"story_id"`
	Title         string          `json:"title"`
	Events        []TimelineEvent `json:"events"`
	CurrentStatus string          `json:"current_status"`
	FirstSeen     time.Time       `json:"first_seen"`
	LastUpdated   time.Time       `json:"last_updated"`
}
