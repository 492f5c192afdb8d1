package monitor

import (
	"testing"
	"time"

	"github.com/mathieu-neron/tubewatch/internal/model"
)

func TestDeriveEvent_FirstObservation(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		next     model.Item
		wantKind model.EventKind
	}{
		{"plain upload", model.Item{VideoID: "aaaaaaaaaaa", Type: model.TypeVideo}, model.EventNewVideo},
		{"short", model.Item{VideoID: "aaaaaaaaaaa", Type: model.TypeShort}, model.EventNewVideo},
		{"live broadcast", model.Item{VideoID: "aaaaaaaaaaa", IsLiveNow: true}, model.EventLiveStarted},
		{"scheduled broadcast", model.Item{VideoID: "aaaaaaaaaaa", IsUpcoming: true, ScheduledStart: &start}, model.EventScheduled},
		{"upcoming without start", model.Item{VideoID: "aaaaaaaaaaa", IsUpcoming: true}, model.EventScheduled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, _, ok := deriveEvent(nil, tt.next)
			if !ok {
				t.Fatal("first observation produced no event")
			}
			if kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", kind, tt.wantKind)
			}
		})
	}
}

func TestDeriveEvent_LiveTransitions(t *testing.T) {
	prev := model.Item{VideoID: "aaaaaaaaaaa", Title: "stream", Type: model.TypeVideo}
	next := prev
	next.IsLiveNow = true
	next.Type = model.TypeLive

	kind, _, ok := deriveEvent(&prev, next)
	if !ok || kind != model.EventLiveStarted {
		t.Errorf("false->true: kind = %q ok = %v, want live_started", kind, ok)
	}

	// And back down.
	ended := next
	ended.IsLiveNow = false
	ended.Type = model.TypeRecording

	kind, _, ok = deriveEvent(&next, ended)
	if !ok || kind != model.EventLiveEnded {
		t.Errorf("true->false: kind = %q ok = %v, want live_ended", kind, ok)
	}
}

func TestDeriveEvent_LiveTransitionBeatsTypeChange(t *testing.T) {
	// A stream going live also changes its type; only live_started is
	// reported for that transition.
	prev := model.Item{VideoID: "aaaaaaaaaaa", Title: "before", Type: model.TypeScheduled}
	next := model.Item{VideoID: "aaaaaaaaaaa", Title: "after", Type: model.TypeLive, IsLiveNow: true}

	kind, _, ok := deriveEvent(&prev, next)
	if !ok || kind != model.EventLiveStarted {
		t.Errorf("kind = %q ok = %v, want live_started", kind, ok)
	}
}

func TestDeriveEvent_MetadataChange(t *testing.T) {
	prev := model.Item{VideoID: "aaaaaaaaaaa", Title: "old title", Type: model.TypeVideo}
	next := model.Item{VideoID: "aaaaaaaaaaa", Title: "new title", Type: model.TypeVideo}

	kind, payload, ok := deriveEvent(&prev, next)
	if !ok || kind != model.EventVideoUpdated {
		t.Fatalf("kind = %q ok = %v, want video_updated", kind, ok)
	}

	before, _ := payload["before"].(map[string]any)
	after, _ := payload["after"].(map[string]any)
	if before["title"] != "old title" || after["title"] != "new title" {
		t.Errorf("payload = %v, want before/after titles", payload)
	}
}

func TestDeriveEvent_NoChange(t *testing.T) {
	item := model.Item{VideoID: "aaaaaaaaaaa", Title: "same", Type: model.TypeVideo}

	if kind, _, ok := deriveEvent(&item, item); ok {
		t.Errorf("unchanged item produced event %q", kind)
	}
}
