package story

import (
	"strings"

	"github.com/vigil-intel/vigil/pkg/common"
)

// Timeline event types, from earliest to latest phase of a story.
const (
	EventDisclosure   = "disclosure"
	EventNewVariant   = "new_variant"
	EventExploitSeen  = "exploit_seen"
	EventActiveAttack = "active_attack"
	EventUpdate       = "update"
)

const maxEventTitleLen = 100

// classifyEvent assigns an event type from the article's text and category
// signals. Phases are checked in story order and the first match wins;
// articles with no signal are plain updates.
func classifyEvent(signal string) string {
	switch {
	case containsAny(signal, "disclosed", "discovered", "disclosure"):
		return EventDisclosure
	case containsAny(signal, "variant", "strain", "new version", "evolved"):
		return EventNewVariant
	case containsAny(signal, "exploit", "proof-of-concept", "poc"):
		return EventExploitSeen
	case containsAny(signal, "attack", "breach", "campaign"):
		return EventActiveAttack
	default:
		return EventUpdate
	}
}

func classifySeverity(signal string) string {
	switch {
	case containsAny(signal, "critical", "zero-day", "actively exploited", "rce"):
		return "critical"
	case containsAny(signal, "high severity", "high", "urgent", "important"):
		return "high"
	default:
		return "medium"
	}
}

func containsAny(s string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

func eventSignal(article *common.Article) string {
	parts := []string{article.Title, article.Summary, article.Content}
	parts = append(parts, article.Categories...)
	return strings.ToLower(strings.Join(parts, " "))
}

// EventFor classifies one article as a timeline event.
func EventFor(article *common.Article) common.TimelineEvent {
	signal := eventSignal(article)
	title := article.Title
	if runes := []rune(title); len(runes) > maxEventTitleLen {
		title = string(runes[:maxEventTitleLen])
	}
	return common.TimelineEvent{
		ArticleID: article.ID,
		Title:     title,
		EventType: classifyEvent(signal),
		Timestamp: article.PublishedAt,
		Severity:  classifySeverity(signal),
	}
}

// Timeline renders a story's members as ordered events. Members the
// resolver no longer knows are skipped. CurrentStatus is the event type of
// the most recent member.
func (e *Engine) Timeline(storyID string) (common.StoryTimeline, bool) {
	s, ok := e.Get(storyID)
	if !ok {
		return common.StoryTimeline{}, false
	}

	timeline := common.StoryTimeline{
		StoryID:       s.ID,
		Title:         s.Title,
		CurrentStatus: EventUpdate,
		FirstSeen:     s.FirstSeen,
		LastUpdated:   s.LastUpdated,
	}
	for _, articleID := range s.ArticleIDs {
		article, ok := e.resolve(articleID)
		if !ok {
			continue
		}
		timeline.Events = append(timeline.Events, EventFor(article))
	}
	if n := len(timeline.Events); n > 0 {
		timeline.CurrentStatus = timeline.Events[n-1].EventType
	}
	return timeline, true
}

// SingleTimeline builds a one-event timeline for an article that has no
// story assignment yet.
func SingleTimeline(article *common.Article) common.StoryTimeline {
	event := EventFor(article)
	return common.StoryTimeline{
		Title:         article.Title,
		Events:        []common.TimelineEvent{event},
		CurrentStatus: event.EventType,
		FirstSeen:     article.PublishedAt,
		LastUpdated:   article.PublishedAt,
	}
}
