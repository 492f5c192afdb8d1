// Package monitor runs the change-detection loop: it polls every active
// channel, turns raw scraped signals into lifecycle events, and keeps the
// store pruned.
package monitor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mathieu-neron/tubewatch/internal/classify"
	"github.com/mathieu-neron/tubewatch/internal/model"
)

// shortDurationCutoff excludes borderline shorts from the feed scan even when
// the classifier typed them as plain videos.
const shortDurationCutoff = 120

// Config holds the monitor knobs.
type Config struct {
	Interval        time.Duration // polling interval (default 3m)
	MaxFeedItems    int           // max items considered per feed category
	ItemsPerChannel int           // per-channel retention cap
	EventRetention  time.Duration // age after which events are pruned
}

// Monitor owns the polling loop. It has exactly two states, stopped and
// running; Start is idempotent and Stop lets an in-flight pass finish.
type Monitor struct {
	store      Store
	source     Source
	classifier *classify.Classifier
	sink       Sink
	cfg        Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// cache holds the last-known channel record per id and supplies the
	// channel metadata on event envelopes. It is touched only by the
	// loop's own goroutine; the store stays the source of truth, so any
	// disagreement refreshes the entry.
	cache map[string]model.Channel
}

func New(store Store, source Source, classifier *classify.Classifier, sink Sink, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Minute
	}
	if cfg.MaxFeedItems <= 0 {
		cfg.MaxFeedItems = 15
	}
	if cfg.ItemsPerChannel <= 0 {
		cfg.ItemsPerChannel = 10
	}
	if cfg.EventRetention <= 0 {
		cfg.EventRetention = 72 * time.Hour
	}
	return &Monitor{
		store:      store,
		source:     source,
		classifier: classifier,
		sink:       sink,
		cfg:        cfg,
		cache:      make(map[string]model.Channel),
	}
}

// Start runs one immediate full pass, then arms the recurring timer. Calling
// Start while running is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	log.Printf("monitor: starting (interval=%s)", m.cfg.Interval)
	go m.run(ctx)
}

// Stop cancels the timer. An in-flight pass is allowed to finish; await Done
// for bounded shutdown.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}

// Done is closed once the loop goroutine (including any in-flight pass) has
// exited. Nil before the first Start.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doneCh
}

// Running reports whether the loop is armed.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	m.RunPass(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.RunPass(ctx)
		case <-m.stopCh:
			log.Println("monitor: stopping (stop signal)")
			return
		case <-ctx.Done():
			log.Println("monitor: stopping (context cancelled)")
			m.Stop()
			return
		}
	}
}

// RunPass performs one full pass over all active channels, then retention
// cleanup. Channels are checked in sequence; a failing channel is reported
// and skipped, never aborting the pass.
func (m *Monitor) RunPass(ctx context.Context) {
	start := time.Now()
	summary := model.CycleSummary{StartedAt: start.UTC()}

	channels, err := m.store.ListActiveChannels(ctx)
	if err != nil {
		m.sink.Error(fmt.Errorf("list active channels: %w", err), "")
		return
	}

	for _, ch := range channels {
		items, events, err := m.checkChannel(ctx, ch)
		summary.Channels++
		if err != nil {
			summary.Failures++
			m.sink.Error(fmt.Errorf("check channel: %w", err), ch.ChannelID)
			continue
		}
		summary.ItemsUpserted += items
		summary.Events += events
	}

	m.cleanup(ctx)

	summary.Duration = time.Since(start)
	summary.DurationMs = summary.Duration.Milliseconds()
	m.sink.Cycle(summary)

	log.Printf("monitor: cycle complete — %d channels, %d items upserted, %d events, %d failures (%s)",
		summary.Channels, summary.ItemsUpserted, summary.Events, summary.Failures,
		summary.Duration.Round(time.Millisecond))
}

// checkChannel runs the six-step check for one channel.
func (m *Monitor) checkChannel(ctx context.Context, ch model.Channel) (itemCount, eventCount int, err error) {
	// 1. Re-validate against the store; the channel may have been deleted
	// out-of-band. The cached record is refreshed whenever the store
	// disagrees with it and evicted when the channel is gone.
	stored, err := m.store.GetChannel(ctx, ch.ChannelID)
	if err != nil {
		return 0, 0, fmt.Errorf("revalidate: %w", err)
	}
	if stored == nil || !stored.Active {
		delete(m.cache, ch.ChannelID)
		return 0, 0, nil
	}
	if cached, ok := m.cache[ch.ChannelID]; !ok || cached != *stored {
		m.cache[ch.ChannelID] = *stored
	}
	chRec := m.cache[ch.ChannelID]

	// 2. Feed aggregation, classification merge, shorts/VOD/live filtering.
	feeds, err := m.source.FetchFeeds(ctx, ch.ChannelID, m.cfg.MaxFeedItems)
	if err != nil {
		return 0, 0, err
	}
	canonical := m.classifier.Merge(ctx, feeds)
	surviving := filterFeedItems(canonical, shortsIDSet(feeds))

	// transitioned tracks which items already produced an event this cycle,
	// so retirement never emits a duplicate live_ended.
	transitioned := make(map[string]bool)
	now := time.Now().UTC()

	// 3. Live probe, fetched before the feed upserts so the feed scan can
	// defer to it: a broadcast sitting in the uploads feed carries no live
	// signals there and would otherwise report twice for one item.
	ref, err := m.source.LiveProbe(ctx, ch.ChannelID)
	if err != nil {
		return 0, 0, fmt.Errorf("live probe: %w", err)
	}
	probeVideoID := ""
	if ref != nil {
		probeVideoID = ref.VideoID
	}

	// 4. Upsert surviving feed items; each yields zero or one event. The
	// probe's item is skipped here and applied in step 5.
	for _, item := range surviving {
		if item.VideoID == probeVideoID {
			continue
		}
		item.ChannelID = ch.ChannelID
		if item.Published.IsZero() {
			item.Published = now
		}
		emitted, err := m.upsertAndEmit(ctx, chRec, item, transitioned)
		if err != nil {
			return itemCount, eventCount, err
		}
		itemCount++
		if emitted {
			eventCount++
		}
	}

	// 5. Apply the probe result after the feed upserts so retirement sees
	// the freshest state, then retire anything still persisted as live that
	// the probe did not confirm.
	if ref != nil {
		item := model.Item{
			VideoID:   ref.VideoID,
			ChannelID: ch.ChannelID,
			Title:     ref.Title,
			Thumbnail: ref.Thumbnail,
			Published: now,
			Type:      model.TypeLive,
			IsLiveNow: true,
		}
		emitted, err := m.upsertAndEmit(ctx, chRec, item, transitioned)
		if err != nil {
			return itemCount, eventCount, err
		}
		itemCount++
		if emitted {
			eventCount++
		}
	}
	retired, err := m.retireStaleLives(ctx, chRec, probeVideoID, transitioned)
	if err != nil {
		return itemCount, eventCount, err
	}
	eventCount += retired

	// 6. Record the check.
	chRec.CheckedAt = now
	_, curr, err := m.store.UpsertChannel(ctx, chRec)
	if err != nil {
		return itemCount, eventCount, fmt.Errorf("record check: %w", err)
	}
	m.cache[ch.ChannelID] = *curr

	return itemCount, eventCount, nil
}

// upsertAndEmit durably upserts the item, derives the lifecycle transition,
// persists the event and only then fans it out.
func (m *Monitor) upsertAndEmit(ctx context.Context, ch model.Channel, item model.Item, transitioned map[string]bool) (bool, error) {
	prev, curr, err := m.store.UpsertItem(ctx, item)
	if err != nil {
		return false, fmt.Errorf("upsert item %s: %w", item.VideoID, err)
	}

	kind, payload, ok := deriveEvent(prev, *curr)
	if !ok {
		return false, nil
	}

	ev := model.Event{
		Kind:      kind,
		VideoID:   curr.VideoID,
		ChannelID: ch.ChannelID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.AddEvent(ctx, ev); err != nil {
		return false, fmt.Errorf("add event: %w", err)
	}

	transitioned[curr.VideoID] = true
	m.sink.Event(model.EventEnvelope{
		Kind:      kind,
		Item:      *curr,
		Channel:   ch,
		CreatedAt: ev.CreatedAt,
	})
	return true, nil
}

// retireStaleLives deletes items still persisted as live whose id does not
// match the probe result, bounding the one-live-per-channel invariant. A
// retired item emits live_ended only if nothing else transitioned it this
// cycle; its durable record (and cascaded events) are gone either way.
func (m *Monitor) retireStaleLives(ctx context.Context, ch model.Channel, probeVideoID string, transitioned map[string]bool) (int, error) {
	liveItems, err := m.store.ListLiveItems(ctx, ch.ChannelID)
	if err != nil {
		return 0, fmt.Errorf("list live items: %w", err)
	}

	events := 0
	for _, stale := range liveItems {
		if stale.VideoID == probeVideoID {
			continue
		}
		if err := m.store.DeleteItem(ctx, stale.VideoID); err != nil {
			return events, fmt.Errorf("retire %s: %w", stale.VideoID, err)
		}
		if !transitioned[stale.VideoID] {
			stale.IsLiveNow = false
			m.sink.Event(model.EventEnvelope{
				Kind:      model.EventLiveEnded,
				Item:      stale,
				Channel:   ch,
				CreatedAt: time.Now().UTC(),
			})
			events++
		}
	}
	return events, nil
}

// filterFeedItems drops shorts, recordings and live items from the feed
// scan. Any one of the four shorts filters suffices: classified type, sub-2m
// duration, title tag, or membership in the shorts feed.
func filterFeedItems(items []model.Item, shortsIDs map[string]bool) []model.Item {
	var out []model.Item
	for _, item := range items {
		if item.Type == model.TypeShort || shortsIDs[item.VideoID] {
			continue
		}
		if item.Duration != nil && *item.Duration < shortDurationCutoff {
			continue
		}
		if hasShortTag(item.Title) {
			continue
		}
		if item.Type == model.TypeRecording || item.Type == model.TypeLive || item.IsLiveNow {
			continue
		}
		out = append(out, item)
	}
	return out
}

func hasShortTag(title string) bool {
	return strings.Contains(strings.ToLower(title), "#short")
}

func shortsIDSet(feeds map[model.FeedCategory][]model.FeedStub) map[string]bool {
	set := make(map[string]bool, len(feeds[model.FeedShorts]))
	for _, stub := range feeds[model.FeedShorts] {
		set[stub.VideoID] = true
	}
	return set
}

// cleanup prunes aged events, over-cap items (bookmarks exempt) and events
// whose item is gone.
func (m *Monitor) cleanup(ctx context.Context) {
	if n, err := m.store.PruneEventsOlderThan(ctx, m.cfg.EventRetention); err != nil {
		log.Printf("monitor: prune events error: %v", err)
	} else if n > 0 {
		log.Printf("monitor: pruned %d aged events", n)
	}

	if n, err := m.store.PruneItemsExceeding(ctx, m.cfg.ItemsPerChannel); err != nil {
		log.Printf("monitor: prune items error: %v", err)
	} else if n > 0 {
		log.Printf("monitor: pruned %d over-cap items", n)
	}

	if n, err := m.store.PruneOrphanedEvents(ctx); err != nil {
		log.Printf("monitor: prune orphaned events error: %v", err)
	} else if n > 0 {
		log.Printf("monitor: pruned %d orphaned events", n)
	}
}
