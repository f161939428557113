package graph

import (
	"github.com/vigil-intel/vigil/pkg/common"
)

const defaultDepth = 2

// Neighbors returns the depth-bounded neighborhood around a focus node as a
// renderable view. Traversal is breadth-first over both edge directions,
// bounded by maxDepth (default 2 when <= 0). rels, when non-empty, restricts
// traversal to the given relationship labels.
//
// The returned view lists nodes in BFS discovery order and edges in
// insertion order, so results are stable for a given graph state. The
// second return value is false when the focus node does not exist.
func (s *Store) Neighbors(focusID string, maxDepth int, rels ...Relationship) (common.GraphView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if maxDepth <= 0 {
		maxDepth = defaultDepth
	}

	view := common.GraphView{
		FocusNode: focusID,
		Depth:     maxDepth,
	}
	if _, ok := s.nodes[focusID]; !ok {
		return view, false
	}

	relFilter := make(map[Relationship]struct{}, len(rels))
	for _, r := range rels {
		relFilter[r] = struct{}{}
	}
	allowed := func(r Relationship) bool {
		if len(relFilter) == 0 {
			return true
		}
		_, ok := relFilter[r]
		return ok
	}

	visited := map[string]struct{}{focusID: {}}
	order := []string{focusID}
	frontier := []string{focusID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, key := range s.incident(id) {
				if !allowed(key.rel) {
					continue
				}
				other := key.target
				if other == id {
					other = key.source
				}
				if _, seen := visited[other]; !seen {
					visited[other] = struct{}{}
					order = append(order, other)
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	for _, id := range order {
		node := s.nodes[id]
		view.Nodes = append(view.Nodes, common.GraphNodeView{
			ID:         node.ID,
			Type:       string(node.Type),
			Label:      node.Label,
			Properties: node.Properties,
		})
	}

	// Edges between any two nodes of the neighborhood, in insertion order.
	for _, key := range s.edgeOrder {
		if !allowed(key.rel) {
			continue
		}
		_, srcIn := visited[key.source]
		_, tgtIn := visited[key.target]
		if !srcIn || !tgtIn {
			continue
		}
		edge := s.edges[key]
		view.Edges = append(view.Edges, common.GraphEdgeView{
			Source:       edge.Source,
			Target:       edge.Target,
			Relationship: string(edge.Rel),
			Weight:       edge.Weight,
		})
	}

	view.TotalNodes = len(view.Nodes)
	view.TotalEdges = len(view.Edges)
	return view, true
}

// incident returns outgoing then incoming edge keys of a node, each in
// insertion order.
func (s *Store) incident(id string) []edgeKey {
	outs := s.out[id]
	ins := s.in[id]
	keys := make([]edgeKey, 0, len(outs)+len(ins))
	keys = append(keys, outs...)
	keys = append(keys, ins...)
	return keys
}

// Statistics returns node and edge counts, broken down by node type.
func (s *Store) Statistics() common.GraphStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, node := range s.nodes {
		counts[string(node.Type)]++
	}

	return common.GraphStats{
		NodeCount:    len(s.nodes),
		EdgeCount:    len(s.edges),
		CountsByType: counts,
	}
}

// ArticlesMentioning returns the IDs of article nodes with an edge pointing
// at the given entity node, in edge insertion order.
func (s *Store) ArticlesMentioning(entityID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, key := range s.in[entityID] {
		node, ok := s.nodes[key.source]
		if !ok || node.Type != NodeArticle {
			continue
		}
		out = append(out, node.ID)
	}
	return out
}
