package monitor

import (
	"context"
	"time"

	"github.com/mathieu-neron/tubewatch/internal/model"
)

// Store is the durable record of channels, items and events, the single
// source of truth for "previously known". Lookups return (nil, nil) when the
// record does not exist. Upserts return the previous value so the lifecycle
// state machine can derive transitions.
type Store interface {
	UpsertChannel(ctx context.Context, ch model.Channel) (prev, curr *model.Channel, err error)
	GetChannel(ctx context.Context, channelID string) (*model.Channel, error)
	ListActiveChannels(ctx context.Context) ([]model.Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error

	// UpsertItem preserves the stored bookmark flag and first-seen time;
	// scraped data never overwrites them. Empty title/thumbnail and a zero
	// published time likewise keep the stored values.
	UpsertItem(ctx context.Context, item model.Item) (prev, curr *model.Item, err error)
	GetItem(ctx context.Context, videoID string) (*model.Item, error)
	ListItemsByChannel(ctx context.Context, channelID string) ([]model.Item, error)
	ListLiveItems(ctx context.Context, channelID string) ([]model.Item, error)
	ListScheduledItems(ctx context.Context, channelID string) ([]model.Item, error)
	DeleteItem(ctx context.Context, videoID string) error

	AddEvent(ctx context.Context, ev model.Event) error
	ListRecentEvents(ctx context.Context, limit int) ([]model.Event, error)

	PruneEventsOlderThan(ctx context.Context, age time.Duration) (int64, error)
	// PruneItemsExceeding deletes the oldest unbookmarked items of each
	// channel beyond the per-channel cap. Bookmarked items are exempt.
	PruneItemsExceeding(ctx context.Context, perChannel int) (int64, error)
	PruneOrphanedEvents(ctx context.Context) (int64, error)
}

// Source supplies the scraped inputs of one channel check.
type Source interface {
	FetchChannel(ctx context.Context, channelID string) (*model.Channel, error)
	FetchFeeds(ctx context.Context, channelID string, maxItems int) (map[model.FeedCategory][]model.FeedStub, error)
	LiveProbe(ctx context.Context, channelID string) (*model.LiveRef, error)
}

// Sink receives everything the monitor detects. Delivery is synchronous
// fan-out within the monitor's own goroutine; implementations must not block
// significantly.
type Sink interface {
	Event(env model.EventEnvelope)
	Cycle(summary model.CycleSummary)
	Error(err error, channelID string)
}
