package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vigil-intel/vigil/pkg/common"
	"github.com/vigil-intel/vigil/pkg/logger"
)

// NodeType is the closed set of node kinds in the knowledge graph.
type NodeType string

const (
	NodeArticle       NodeType = "article"
	NodeVulnerability NodeType = "vulnerability"
	NodeThreatActor   NodeType = "threat_actor"
	NodeTechnique     NodeType = "technique"
	NodeSector        NodeType = "sector"
	NodeCategory      NodeType = "category"
)

// Relationship is the closed set of edge labels in the knowledge graph.
type Relationship string

const (
	RelMentions    Relationship = "mentions"
	RelRelatedTo   Relationship = "related_to"
	RelExploits    Relationship = "exploits"
	RelEvolvesFrom Relationship = "evolves_from"
	RelSimilarTo   Relationship = "similar_to"
)

// ErrInconsistent marks a broken graph invariant, e.g. an edge referencing
// a node that was never added. It indicates a programming error in the
// ingestion pipeline, not a recoverable condition.
var ErrInconsistent = errors.New("graph inconsistency")

// Node is a vertex in the knowledge graph. Entity nodes are deduplicated
// case-insensitively on (type, label); article nodes are keyed by article ID.
type Node struct {
	ID         string
	Type       NodeType
	Label      string
	Properties map[string]string

	seq int
}

// Edge is a directed edge. At most one edge exists per
// (source, target, relationship); re-insertion keeps the maximum weight.
type Edge struct {
	Source    string
	Target    string
	Rel       Relationship
	Weight    float64
	CreatedAt time.Time

	seq int
}

type edgeKey struct {
	source string
	target string
	rel    Relationship
}

// Store is an in-memory typed multigraph. A single ingestion writer and any
// number of concurrent readers are supported; every exported method takes
// the store lock on its own, so one method call is one atomic step.
//
// Traversal results are deterministic for a given sequence of mutations:
// nodes and edges carry insertion sequence numbers and are always iterated
// in that order.
type Store struct {
	mu sync.RWMutex

	nodes     map[string]*Node
	nodeOrder []string
	entityIdx map[string]string // lower(type+label) -> node ID

	edges     map[edgeKey]*Edge
	edgeOrder []edgeKey
	out       map[string][]edgeKey
	in        map[string][]edgeKey

	seq int
	now func() time.Time
}

// NewStore creates an empty knowledge graph store.
func NewStore() *Store {
	return &Store{
		nodes:     make(map[string]*Node),
		entityIdx: make(map[string]string),
		edges:     make(map[edgeKey]*Edge),
		out:       make(map[string][]edgeKey),
		in:        make(map[string][]edgeKey),
		now:       time.Now,
	}
}

const maxLabelLen = 80

// AddArticleNode adds (or returns the existing) node for an article.
// The node label is the article title, truncated for display.
func (s *Store) AddArticleNode(article *common.Article) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nodes[article.ID]; ok {
		return existing
	}

	label := article.Title
	if runes := []rune(label); len(runes) > maxLabelLen {
		label = string(runes[:maxLabelLen]) + "..."
	}

	node := &Node{
		ID:    article.ID,
		Type:  NodeArticle,
		Label: label,
		Properties: map[string]string{
			"url":          article.URL,
			"published_at": article.PublishedAt.UTC().Format(time.RFC3339),
		},
	}
	s.insertNode(node)
	return node
}

// AddEntityNode adds (or returns the existing) entity node for the given
// type and label. Matching is case-insensitive; the first-seen label casing
// is kept for display.
func (s *Store) AddEntityNode(nodeType NodeType, label string) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	label = strings.TrimSpace(label)
	idxKey := string(nodeType) + "\x00" + strings.ToLower(label)
	if id, ok := s.entityIdx[idxKey]; ok {
		return s.nodes[id]
	}

	node := &Node{
		ID:    EntityNodeID(nodeType, label),
		Type:  nodeType,
		Label: label,
	}
	s.insertNode(node)
	s.entityIdx[idxKey] = node.ID
	return node
}

// EntityNodeID derives the stable node identifier for an entity label.
func EntityNodeID(nodeType NodeType, label string) string {
	slug := strings.ToLower(strings.TrimSpace(label))
	slug = strings.Join(strings.Fields(slug), "-")
	return string(nodeType) + "-" + slug
}

func (s *Store) insertNode(node *Node) {
	s.seq++
	node.seq = s.seq
	s.nodes[node.ID] = node
	s.nodeOrder = append(s.nodeOrder, node.ID)
}

// AddEdge adds a directed edge between two existing nodes. Weight is
// clamped to [0,1]. Re-inserting an existing (source, target, relationship)
// keeps the maximum of the old and new weight instead of duplicating.
//
// An edge referencing a missing node violates the per-article atomicity
// contract; it is logged loudly and returned as ErrInconsistent.
func (s *Store) AddEdge(source, target string, rel Relationship, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[source]; !ok {
		logger.Error("[Graph] Edge references missing source node", "source", source, "target", target, "rel", rel)
		return fmt.Errorf("%w: edge source %q does not exist", ErrInconsistent, source)
	}
	if _, ok := s.nodes[target]; !ok {
		logger.Error("[Graph] Edge references missing target node", "source", source, "target", target, "rel", rel)
		return fmt.Errorf("%w: edge target %q does not exist", ErrInconsistent, target)
	}

	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}

	key := edgeKey{source: source, target: target, rel: rel}
	if existing, ok := s.edges[key]; ok {
		if weight > existing.Weight {
			existing.Weight = weight
		}
		return nil
	}

	s.seq++
	s.edges[key] = &Edge{
		Source:    source,
		Target:    target,
		Rel:       rel,
		Weight:    weight,
		CreatedAt: s.now(),
		seq:       s.seq,
	}
	s.edgeOrder = append(s.edgeOrder, key)
	s.out[source] = append(s.out[source], key)
	s.in[target] = append(s.in[target], key)
	return nil
}

// HasNode reports whether a node with the given ID exists.
func (s *Store) HasNode(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}
