package model

import "time"

// EventKind is a detected lifecycle transition.
type EventKind string

const (
	EventNewVideo     EventKind = "new_video"
	EventLiveStarted  EventKind = "live_started"
	EventLiveEnded    EventKind = "live_ended"
	EventScheduled    EventKind = "scheduled_live"
	EventVideoUpdated EventKind = "video_updated"
)

// Event is an immutable record of a detected transition. Payload captures the
// before/after values relevant to the kind.
type Event struct {
	ID        int64          `json:"id"`
	Kind      EventKind      `json:"kind"`
	VideoID   string         `json:"videoId"`
	ChannelID string         `json:"channelId"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// EventEnvelope is what subscribers receive per transition: the kind plus the
// full item and channel records involved.
type EventEnvelope struct {
	Kind      EventKind `json:"kind"`
	Item      Item      `json:"item"`
	Channel   Channel   `json:"channel"`
	CreatedAt time.Time `json:"createdAt"`
}

// CycleSummary is emitted once per full monitor pass.
type CycleSummary struct {
	Channels      int           `json:"channels"`
	ItemsUpserted int           `json:"itemsUpserted"`
	Events        int           `json:"events"`
	Failures      int           `json:"failures"`
	Duration      time.Duration `json:"-"`
	DurationMs    int64         `json:"durationMs"`
	StartedAt     time.Time     `json:"startedAt"`
}

// EventsDeltaResponse is the response for GET /api/events/delta.
type EventsDeltaResponse struct {
	Events        []Event `json:"events"`
	SyncTimestamp string  `json:"syncTimestamp"`
}
