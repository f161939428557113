package story

import (
	"strings"
	"testing"
	"time"

	"github.com/vigil-intel/vigil/pkg/common"
)

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		name   string
		signal string
		want   string
	}{
		{"disclosure wording", "researchers disclosed a flaw in acme vpn", EventDisclosure},
		{"discovery wording", "new bug discovered in widely used library", EventDisclosure},
		{"variant wording", "a new variant of the lockbit ransomware", EventNewVariant},
		{"exploit wording", "working exploit released on github", EventExploitSeen},
		{"proof of concept", "proof-of-concept code circulating", EventExploitSeen},
		{"attack wording", "supply chain attack hits vendors", EventActiveAttack},
		{"breach wording", "major breach at hosting provider", EventActiveAttack},
		{"disclosure beats exploit", "disclosed flaw already has an exploit", EventDisclosure},
		{"no signal", "quarterly security roundup", EventUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyEvent(tt.signal); got != tt.want {
				t.Errorf("classifyEvent(%q) = %q, want %q", tt.signal, got, tt.want)
			}
		})
	}
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		signal string
		want   string
	}{
		{"critical flaw in firewall appliance", "critical"},
		{"zero-day under active use", "critical"},
		{"bug is actively exploited in the wild", "critical"},
		{"high severity issue patched", "high"},
		{"routine maintenance notes", "medium"},
	}

	for _, tt := range tests {
		if got := classifySeverity(tt.signal); got != tt.want {
			t.Errorf("classifySeverity(%q) = %q, want %q", tt.signal, got, tt.want)
		}
	}
}

func timelineFixture(t *testing.T) (*Engine, string) {
	t.Helper()
	set := articleSet{}
	e := NewEngine(set.resolve)

	a := set.add("art-a", 1, []string{"CVE-2024-0001"}, nil)
	a.Title = "Flaw disclosed in Acme VPN"
	b := set.add("art-b", 3, []string{"CVE-2024-0001"}, nil)
	b.Title = "Exploit published for Acme VPN flaw"
	c := set.add("art-c", 5, []string{"CVE-2024-0001"}, nil)
	c.Title = "Attack wave hits unpatched Acme VPN servers"

	// Out of chronological order on purpose.
	e.Assign(b, nil)
	e.Assign(a, nil)
	id := e.Assign(c, nil)
	return e, id
}

func TestTimeline(t *testing.T) {
	e, id := timelineFixture(t)

	timeline, ok := e.Timeline(id)
	if !ok {
		t.Fatal("Timeline() did not find the story")
	}

	if len(timeline.Events) != 3 {
		t.Fatalf("event count = %d, want 3", len(timeline.Events))
	}
	wantOrder := []string{"art-a", "art-b", "art-c"}
	wantTypes := []string{EventDisclosure, EventExploitSeen, EventActiveAttack}
	for i, event := range timeline.Events {
		if event.ArticleID != wantOrder[i] {
			t.Errorf("event %d article = %q, want %q", i, event.ArticleID, wantOrder[i])
		}
		if event.EventType != wantTypes[i] {
			t.Errorf("event %d type = %q, want %q", i, event.EventType, wantTypes[i])
		}
		if i > 0 && event.Timestamp.Before(timeline.Events[i-1].Timestamp) {
			t.Errorf("event %d out of chronological order", i)
		}
	}

	if timeline.CurrentStatus != EventActiveAttack {
		t.Errorf("current status = %q, want the latest event type %q", timeline.CurrentStatus, EventActiveAttack)
	}
	if !timeline.FirstSeen.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first seen = %v, want earliest member timestamp", timeline.FirstSeen)
	}
	if !timeline.LastUpdated.Equal(time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("last updated = %v, want latest member timestamp", timeline.LastUpdated)
	}
}

func TestTimelineUnknownStory(t *testing.T) {
	e := NewEngine(articleSet{}.resolve)
	if _, ok := e.Timeline("story-ghost"); ok {
		t.Error("Timeline() ok = true for unknown story")
	}
}

func TestTimelineTruncatesLongTitles(t *testing.T) {
	set := articleSet{}
	e := NewEngine(set.resolve)

	a := set.add("art-a", 1, nil, nil)
	a.Title = strings.Repeat("x", 150)
	id := e.Assign(a, nil)

	timeline, _ := e.Timeline(id)
	if got := len([]rune(timeline.Events[0].Title)); got != maxEventTitleLen {
		t.Errorf("event title length = %d, want %d", got, maxEventTitleLen)
	}
}

func TestSingleTimeline(t *testing.T) {
	article := &common.Article{
		ID:          "art-a",
		Title:       "Critical breach at hosting provider",
		PublishedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	timeline := SingleTimeline(article)
	if timeline.StoryID != "" {
		t.Errorf("story ID = %q, want empty for unassigned article", timeline.StoryID)
	}
	if len(timeline.Events) != 1 || timeline.Events[0].ArticleID != "art-a" {
		t.Fatalf("events = %+v, want single event for art-a", timeline.Events)
	}
	if timeline.CurrentStatus != EventActiveAttack {
		t.Errorf("current status = %q, want %q", timeline.CurrentStatus, EventActiveAttack)
	}
	if timeline.Events[0].Severity != "critical" {
		t.Errorf("severity = %q, want critical", timeline.Events[0].Severity)
	}
}
