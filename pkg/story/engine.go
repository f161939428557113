// Package story groups articles into evolving security stories. Two signals
// place an article into an existing story: a strong embedding similarity to
// one of its members, or a shared vulnerability or threat actor. When a new
// article bridges previously disjoint stories they are merged, keeping the
// identity of the oldest one.
package story

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/vigil-intel/vigil/pkg/common"
)

// Story is a cluster of articles describing the same evolving event.
// ArticleIDs are kept sorted by publication time, oldest first.
type Story struct {
	ID          string
	Title       string
	ArticleIDs  []string
	FirstSeen   time.Time
	LastUpdated time.Time

	seq uint64
}

// Resolver looks up stored article metadata by ID. The engine uses it to
// keep member lists in chronological order across merges.
type Resolver func(articleID string) (*common.Article, bool)

type Engine struct {
	mu      sync.RWMutex
	resolve Resolver

	stories      map[string]*Story
	articleStory map[string]string

	// entityStories maps a normalized vulnerability or actor key to the
	// stories whose members mention it.
	entityStories map[string]map[string]struct{}

	seq uint64
}

func NewEngine(resolve Resolver) *Engine {
	return &Engine{
		resolve:       resolve,
		stories:       make(map[string]*Story),
		articleStory:  make(map[string]string),
		entityStories: make(map[string]map[string]struct{}),
	}
}

func vulnKey(cve string) string {
	return "vuln:" + strings.ToUpper(strings.TrimSpace(cve))
}

func actorKey(actor string) string {
	return "actor:" + strings.ToLower(strings.TrimSpace(actor))
}

func entityKeys(article *common.Article) []string {
	keys := make([]string, 0, len(article.Vulnerabilities)+len(article.ThreatActors))
	for _, v := range article.Vulnerabilities {
		keys = append(keys, vulnKey(v))
	}
	for _, a := range article.ThreatActors {
		keys = append(keys, actorKey(a))
	}
	return keys
}

// Assign places an article into a story and returns the story ID.
// relatedIDs are articles whose embeddings cleared the same-story
// similarity threshold; their stories plus any story sharing one of the
// article's vulnerabilities or actors are candidates. With no candidate a
// new single-member story is opened. With several, the article bridges
// them and they merge into the oldest.
//
// Assigning an already placed article returns its current story unchanged.
func (e *Engine) Assign(article *common.Article, relatedIDs []string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id, ok := e.articleStory[article.ID]; ok {
		return id
	}

	candidates := make(map[string]struct{})
	for _, rel := range relatedIDs {
		if id, ok := e.articleStory[rel]; ok {
			candidates[id] = struct{}{}
		}
	}
	for _, key := range entityKeys(article) {
		for id := range e.entityStories[key] {
			candidates[id] = struct{}{}
		}
	}

	var target *Story
	switch len(candidates) {
	case 0:
		target = e.newStory(article)
	case 1:
		for id := range candidates {
			target = e.stories[id]
		}
	default:
		target = e.mergeStories(candidates)
	}

	e.addMember(target, article)
	return target.ID
}

func (e *Engine) newStory(article *common.Article) *Story {
	e.seq++
	id, err := gonanoid.New(12)
	if err != nil {
		id = fmt.Sprintf("%d-%d", e.seq, time.Now().UnixNano())
	}
	s := &Story{
		ID:          "story-" + id,
		Title:       article.Title,
		FirstSeen:   article.PublishedAt,
		LastUpdated: article.PublishedAt,
		seq:         e.seq,
	}
	e.stories[s.ID] = s
	return s
}

// mergeStories folds the given stories into the oldest one and returns it.
func (e *Engine) mergeStories(ids map[string]struct{}) *Story {
	members := make([]*Story, 0, len(ids))
	for id := range ids {
		members = append(members, e.stories[id])
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].FirstSeen.Equal(members[j].FirstSeen) {
			return members[i].FirstSeen.Before(members[j].FirstSeen)
		}
		return members[i].seq < members[j].seq
	})

	dst := members[0]
	for _, src := range members[1:] {
		dst.ArticleIDs = append(dst.ArticleIDs, src.ArticleIDs...)
		if src.FirstSeen.Before(dst.FirstSeen) {
			dst.FirstSeen = src.FirstSeen
		}
		if src.LastUpdated.After(dst.LastUpdated) {
			dst.LastUpdated = src.LastUpdated
		}
		for _, articleID := range src.ArticleIDs {
			e.articleStory[articleID] = dst.ID
		}
		for key, set := range e.entityStories {
			if _, ok := set[src.ID]; ok {
				delete(set, src.ID)
				e.entityStories[key][dst.ID] = struct{}{}
			}
		}
		delete(e.stories, src.ID)
	}

	e.sortMembers(dst)
	return dst
}

func (e *Engine) addMember(s *Story, article *common.Article) {
	s.ArticleIDs = append(s.ArticleIDs, article.ID)
	e.sortMembers(s)

	if article.PublishedAt.Before(s.FirstSeen) {
		s.FirstSeen = article.PublishedAt
	}
	if article.PublishedAt.After(s.LastUpdated) {
		s.LastUpdated = article.PublishedAt
	}

	e.articleStory[article.ID] = s.ID
	for _, key := range entityKeys(article) {
		set, ok := e.entityStories[key]
		if !ok {
			set = make(map[string]struct{})
			e.entityStories[key] = set
		}
		set[s.ID] = struct{}{}
	}
}

func (e *Engine) sortMembers(s *Story) {
	sort.SliceStable(s.ArticleIDs, func(i, j int) bool {
		a, aok := e.resolve(s.ArticleIDs[i])
		b, bok := e.resolve(s.ArticleIDs[j])
		if !aok || !bok {
			return !aok && bok
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.ID < b.ID
	})
}

// StoryOf returns a snapshot of the story an article belongs to.
func (e *Engine) StoryOf(articleID string) (Story, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	id, ok := e.articleStory[articleID]
	if !ok {
		return Story{}, false
	}
	return e.snapshot(e.stories[id]), true
}

// Get returns a snapshot of a story by ID.
func (e *Engine) Get(storyID string) (Story, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.stories[storyID]
	if !ok {
		return Story{}, false
	}
	return e.snapshot(s), true
}

// Count reports the number of live stories.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.stories)
}

func (e *Engine) snapshot(s *Story) Story {
	out := *s
	out.ArticleIDs = append([]string(nil), s.ArticleIDs...)
	return out
}
