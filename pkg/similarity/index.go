// Package similarity provides an embedding index for finding articles with
// related content. Vectors are compared with cosine similarity and queries
// return the best matches above a caller-supplied score floor.
package similarity

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Match is a single index hit.
type Match struct {
	ID          string
	Score       float64
	PublishedAt time.Time
}

// Index stores embedding vectors keyed by article ID.
type Index interface {
	// Upsert registers or replaces the vector for an article. Empty
	// vectors are ignored.
	Upsert(id string, vector []float32, publishedAt time.Time)

	// QueryNearest returns up to limit matches with cosine similarity of
	// at least minScore, best first. The article identified by exclude is
	// never part of the result.
	QueryNearest(vector []float32, limit int, minScore float64, exclude string) []Match

	// Remove drops an article from the index.
	Remove(id string)

	// Len reports the number of indexed vectors.
	Len() int
}

type entry struct {
	vector      []float32
	norm        float64
	publishedAt time.Time
}

// LinearIndex is a scan-based Index. Lookups walk every stored vector,
// which holds up fine for the corpus sizes a single process handles.
type LinearIndex struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewLinearIndex() *LinearIndex {
	return &LinearIndex{entries: make(map[string]entry)}
}

func (x *LinearIndex) Upsert(id string, vector []float32, publishedAt time.Time) {
	if len(vector) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[id] = entry{
		vector:      vector,
		norm:        vectorNorm(vector),
		publishedAt: publishedAt,
	}
}

func (x *LinearIndex) QueryNearest(vector []float32, limit int, minScore float64, exclude string) []Match {
	if len(vector) == 0 || limit <= 0 {
		return nil
	}
	queryNorm := vectorNorm(vector)
	if queryNorm == 0 {
		return nil
	}

	x.mu.RLock()
	matches := make([]Match, 0, len(x.entries))
	for id, e := range x.entries {
		if id == exclude || e.norm == 0 {
			continue
		}
		score := dotProduct(vector, e.vector) / (queryNorm * e.norm)
		if score < minScore {
			continue
		}
		matches = append(matches, Match{ID: id, Score: score, PublishedAt: e.publishedAt})
	}
	x.mu.RUnlock()

	// Ties break toward the newer article, then by ID for stable output.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if !matches[i].PublishedAt.Equal(matches[j].PublishedAt) {
			return matches[i].PublishedAt.After(matches[j].PublishedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func (x *LinearIndex) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.entries, id)
}

func (x *LinearIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}
