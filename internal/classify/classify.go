// Package classify merges per-feed discoveries into one canonical,
// id-unique item list per channel and assigns each item its best-known type.
package classify

import (
	"context"
	"log"
	"sync"

	"github.com/mathieu-neron/tubewatch/internal/model"
)

// ShortMaxSeconds is the duration at or under which a video counts as a short.
const ShortMaxSeconds = 90

// Resolver fetches classification signals for a single video. It is the
// pluggable refinement strategy: a nil Resolver disables per-item refinement
// and items keep their feed-hint typing.
type Resolver interface {
	Resolve(ctx context.Context, videoID string) (model.Signals, error)
}

// mergeOrder mirrors the feed fetch order: lives before videos before shorts,
// so an id in both the lives and videos feeds is first seen as a recording.
var mergeOrder = []model.FeedCategory{model.FeedLives, model.FeedVideos, model.FeedShorts}

// Classifier turns raw feed stubs into canonical items.
type Classifier struct {
	resolver Resolver
}

func New(resolver Resolver) *Classifier {
	return &Classifier{resolver: resolver}
}

// Merge combines per-category stubs into the canonical item list for one
// cycle. Merging the same input twice yields the same result.
func (c *Classifier) Merge(ctx context.Context, feeds map[model.FeedCategory][]model.FeedStub) []model.Item {
	signals := c.resolveAll(ctx, feeds)

	index := make(map[string]int)
	var items []model.Item

	for _, category := range mergeOrder {
		for _, stub := range feeds[category] {
			candidate := buildItem(stub, signals[stub.VideoID])

			i, exists := index[stub.VideoID]
			if !exists {
				index[stub.VideoID] = len(items)
				items = append(items, candidate)
				continue
			}

			kept := &items[i]
			backfill(kept, candidate)
			if dominance(candidate) > dominance(*kept) {
				backfill(&candidate, *kept)
				*kept = candidate
			}
		}
	}

	return items
}

// buildItem folds a stub and its (possibly absent) signals into an item.
func buildItem(stub model.FeedStub, sig *model.Signals) model.Item {
	item := model.Item{
		VideoID:   stub.VideoID,
		Title:     stub.Title,
		Thumbnail: stub.Thumbnail,
		Published: stub.Published,
		Type:      provisionalType(stub.Category),
	}
	if sig != nil {
		item.IsLiveNow = sig.IsLiveNow
		item.IsUpcoming = sig.IsUpcoming
		item.WasLive = sig.WasLive
		item.Duration = sig.Duration
		item.ScheduledStart = sig.ScheduledStart
		item.Type = ComputeType(*sig, stub.Category)
	}
	return item
}

// provisionalType is the feed-hint typing applied before any refinement.
func provisionalType(category model.FeedCategory) model.VideoType {
	switch category {
	case model.FeedShorts:
		return model.TypeShort
	case model.FeedLives:
		return model.TypeRecording
	default:
		return model.TypeVideo
	}
}

// ComputeType applies the classification priority order; first match wins.
func ComputeType(sig model.Signals, category model.FeedCategory) model.VideoType {
	switch {
	case sig.IsUpcoming && sig.ScheduledStart != nil:
		return model.TypeScheduled
	case sig.IsLiveNow:
		return model.TypeLive
	case sig.WasLive:
		return model.TypeRecording
	case sig.Duration != nil && *sig.Duration <= ShortMaxSeconds:
		return model.TypeShort
	case category == model.FeedShorts:
		return model.TypeShort
	default:
		return model.TypeVideo
	}
}

// dominance ranks how much an observation knows about an item. A newcomer
// replaces the kept record only when it strictly outranks it; ties keep the
// first-seen record.
func dominance(item model.Item) int {
	switch {
	case item.IsLiveNow:
		return 4
	case item.WasLive:
		return 3
	case item.IsUpcoming:
		return 2
	case item.Type == model.TypeRecording || item.Type == model.TypeLive || item.Type == model.TypeScheduled:
		return 1
	default:
		return 0
	}
}

// backfill fills dst's missing display fields from src. Tab-scraped stubs
// carry no published time and sometimes no title; the uploads feed does.
func backfill(dst *model.Item, src model.Item) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Thumbnail == "" {
		dst.Thumbnail = src.Thumbnail
	}
	if dst.Published.IsZero() {
		dst.Published = src.Published
	}
	if dst.Duration == nil {
		dst.Duration = src.Duration
	}
}

// resolveAll runs the per-item refinement for every distinct id. Concurrency
// is bounded by the fetch client underneath the resolver. A failed resolution
// degrades that item to its feed-hint typing.
func (c *Classifier) resolveAll(ctx context.Context, feeds map[model.FeedCategory][]model.FeedStub) map[string]*model.Signals {
	if c.resolver == nil {
		return nil
	}

	ids := make([]string, 0)
	seen := make(map[string]bool)
	for _, category := range mergeOrder {
		for _, stub := range feeds[category] {
			if !seen[stub.VideoID] {
				seen[stub.VideoID] = true
				ids = append(ids, stub.VideoID)
			}
		}
	}

	signals := make(map[string]*model.Signals, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sig, err := c.resolver.Resolve(ctx, id)
			if err != nil {
				log.Printf("classify: resolve %s failed, keeping feed-hint type: %v", id, err)
				return
			}
			mu.Lock()
			signals[id] = &sig
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return signals
}
