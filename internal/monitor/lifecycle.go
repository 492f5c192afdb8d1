package monitor

import (
	"time"

	"github.com/mathieu-neron/tubewatch/internal/model"
)

// deriveEvent computes the zero-or-one lifecycle event for an item
// transition: prev is the previously persisted record (nil when first seen),
// next is the newly observed one.
func deriveEvent(prev *model.Item, next model.Item) (model.EventKind, map[string]any, bool) {
	if prev == nil {
		switch {
		case next.IsLiveNow:
			return model.EventLiveStarted, map[string]any{"title": next.Title}, true
		case next.IsUpcoming:
			payload := map[string]any{"title": next.Title}
			if next.ScheduledStart != nil {
				payload["scheduledStart"] = next.ScheduledStart.Format(time.RFC3339)
			}
			return model.EventScheduled, payload, true
		default:
			return model.EventNewVideo, map[string]any{"title": next.Title, "type": string(next.Type)}, true
		}
	}

	if !prev.IsLiveNow && next.IsLiveNow {
		return model.EventLiveStarted, map[string]any{"title": next.Title}, true
	}
	if prev.IsLiveNow && !next.IsLiveNow {
		return model.EventLiveEnded, map[string]any{"title": next.Title}, true
	}

	if prev.Type != next.Type || prev.Title != next.Title {
		return model.EventVideoUpdated, map[string]any{
			"before": map[string]any{"type": string(prev.Type), "title": prev.Title},
			"after":  map[string]any{"type": string(next.Type), "title": next.Title},
		}, true
	}

	return "", nil, false
}
