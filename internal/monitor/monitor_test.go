package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/mathieu-neron/tubewatch/internal/classify"
	"github.com/mathieu-neron/tubewatch/internal/model"
)

// fakeStore is an in-memory Store mirroring the repository's upsert
// semantics: bookmark and first-seen survive, empty fields keep stored values.
type fakeStore struct {
	channels map[string]model.Channel
	items    map[string]model.Item
	events   []model.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		channels: make(map[string]model.Channel),
		items:    make(map[string]model.Item),
	}
}

func (f *fakeStore) UpsertChannel(_ context.Context, ch model.Channel) (*model.Channel, *model.Channel, error) {
	var prev *model.Channel
	if stored, ok := f.channels[ch.ChannelID]; ok {
		prev = &stored
		if ch.Title == "" {
			ch.Title = stored.Title
		}
		if ch.Thumbnail == "" {
			ch.Thumbnail = stored.Thumbnail
		}
	}
	f.channels[ch.ChannelID] = ch
	curr := ch
	return prev, &curr, nil
}

func (f *fakeStore) GetChannel(_ context.Context, channelID string) (*model.Channel, error) {
	if ch, ok := f.channels[channelID]; ok {
		return &ch, nil
	}
	return nil, nil
}

func (f *fakeStore) ListActiveChannels(_ context.Context) ([]model.Channel, error) {
	var out []model.Channel
	for _, ch := range f.channels {
		if ch.Active {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteChannel(_ context.Context, channelID string) error {
	delete(f.channels, channelID)
	return nil
}

func (f *fakeStore) UpsertItem(_ context.Context, item model.Item) (*model.Item, *model.Item, error) {
	var prev *model.Item
	if stored, ok := f.items[item.VideoID]; ok {
		prev = &stored
		item.Bookmarked = stored.Bookmarked
		item.FirstSeen = stored.FirstSeen
		if item.Title == "" {
			item.Title = stored.Title
		}
		if item.Thumbnail == "" {
			item.Thumbnail = stored.Thumbnail
		}
		if item.Published.IsZero() {
			item.Published = stored.Published
		}
	} else {
		item.FirstSeen = time.Now()
	}
	item.LastUpdated = time.Now()
	f.items[item.VideoID] = item
	curr := item
	return prev, &curr, nil
}

func (f *fakeStore) GetItem(_ context.Context, videoID string) (*model.Item, error) {
	if item, ok := f.items[videoID]; ok {
		return &item, nil
	}
	return nil, nil
}

func (f *fakeStore) ListItemsByChannel(_ context.Context, channelID string) ([]model.Item, error) {
	var out []model.Item
	for _, item := range f.items {
		if item.ChannelID == channelID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) ListLiveItems(_ context.Context, channelID string) ([]model.Item, error) {
	var out []model.Item
	for _, item := range f.items {
		if item.IsLiveNow && (channelID == "" || item.ChannelID == channelID) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) ListScheduledItems(_ context.Context, channelID string) ([]model.Item, error) {
	var out []model.Item
	for _, item := range f.items {
		if item.Type == model.TypeScheduled && (channelID == "" || item.ChannelID == channelID) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteItem(_ context.Context, videoID string) error {
	delete(f.items, videoID)
	kept := f.events[:0]
	for _, ev := range f.events {
		if ev.VideoID != videoID {
			kept = append(kept, ev)
		}
	}
	f.events = kept
	return nil
}

func (f *fakeStore) AddEvent(_ context.Context, ev model.Event) error {
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) ListRecentEvents(_ context.Context, limit int) ([]model.Event, error) {
	if limit > len(f.events) {
		limit = len(f.events)
	}
	out := make([]model.Event, limit)
	for i := 0; i < limit; i++ {
		out[i] = f.events[len(f.events)-1-i]
	}
	return out, nil
}

func (f *fakeStore) PruneEventsOlderThan(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

// PruneItemsExceeding mirrors the repository: rank unbookmarked items per
// channel by published time, newest first, and drop everything past the cap.
// Bookmarked items neither count toward the cap nor get deleted.
func (f *fakeStore) PruneItemsExceeding(_ context.Context, perChannel int) (int64, error) {
	byChannel := make(map[string][]model.Item)
	for _, item := range f.items {
		if item.Bookmarked {
			continue
		}
		byChannel[item.ChannelID] = append(byChannel[item.ChannelID], item)
	}

	var pruned int64
	for _, items := range byChannel {
		if len(items) <= perChannel {
			continue
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Published.After(items[j].Published) })
		for _, item := range items[perChannel:] {
			delete(f.items, item.VideoID)
			pruned++
		}
	}
	return pruned, nil
}

func (f *fakeStore) PruneOrphanedEvents(_ context.Context) (int64, error) {
	return 0, nil
}

// fakeSource serves canned feeds and probe results per channel.
type fakeSource struct {
	feeds      map[string]map[model.FeedCategory][]model.FeedStub
	live       map[string]*model.LiveRef
	feedErr    map[string]error
	feedCalls  int
	probeCalls int
}

func (f *fakeSource) FetchChannel(_ context.Context, channelID string) (*model.Channel, error) {
	return &model.Channel{ChannelID: channelID, Title: "channel", Active: true}, nil
}

func (f *fakeSource) FetchFeeds(_ context.Context, channelID string, _ int) (map[model.FeedCategory][]model.FeedStub, error) {
	f.feedCalls++
	if err := f.feedErr[channelID]; err != nil {
		return nil, err
	}
	if feeds, ok := f.feeds[channelID]; ok {
		return feeds, nil
	}
	return map[model.FeedCategory][]model.FeedStub{}, nil
}

func (f *fakeSource) LiveProbe(_ context.Context, channelID string) (*model.LiveRef, error) {
	f.probeCalls++
	return f.live[channelID], nil
}

// fakeSink records everything the monitor reports.
type fakeSink struct {
	envelopes []model.EventEnvelope
	cycles    []model.CycleSummary
	errs      []error
}

func (f *fakeSink) Event(env model.EventEnvelope) { f.envelopes = append(f.envelopes, env) }
func (f *fakeSink) Cycle(s model.CycleSummary)    { f.cycles = append(f.cycles, s) }
func (f *fakeSink) Error(err error, _ string)     { f.errs = append(f.errs, err) }

func (f *fakeSink) kinds() []model.EventKind {
	out := make([]model.EventKind, 0, len(f.envelopes))
	for _, env := range f.envelopes {
		out = append(out, env.Kind)
	}
	return out
}

const testChannel = "UCabcdefghijklmnopqrstuv"

func newTestMonitor(store Store, source Source, sink Sink) *Monitor {
	return New(store, source, classify.New(nil), sink, Config{Interval: time.Hour})
}

func seedChannel(store *fakeStore) {
	store.channels[testChannel] = model.Channel{ChannelID: testChannel, Title: "channel", Active: true}
}

func TestRunPass_NewUploadEmitsNewVideo(t *testing.T) {
	store := newFakeStore()
	seedChannel(store)

	source := &fakeSource{
		feeds: map[string]map[model.FeedCategory][]model.FeedStub{
			testChannel: {
				model.FeedVideos: {{VideoID: "aaaaaaaaaaa", Title: "fresh upload", Published: time.Now()}},
			},
		},
	}
	sink := &fakeSink{}

	newTestMonitor(store, source, sink).RunPass(context.Background())

	if len(sink.errs) != 0 {
		t.Fatalf("unexpected errors: %v", sink.errs)
	}
	if got := sink.kinds(); len(got) != 1 || got[0] != model.EventNewVideo {
		t.Fatalf("sink kinds = %v, want [new_video]", got)
	}
	if len(store.events) != 1 {
		t.Errorf("persisted %d events, want 1", len(store.events))
	}
	if _, ok := store.items["aaaaaaaaaaa"]; !ok {
		t.Error("upload was not persisted")
	}
}

func TestRunPass_SecondPassIsQuiet(t *testing.T) {
	store := newFakeStore()
	seedChannel(store)

	source := &fakeSource{
		feeds: map[string]map[model.FeedCategory][]model.FeedStub{
			testChannel: {
				model.FeedVideos: {{VideoID: "aaaaaaaaaaa", Title: "fresh upload", Published: time.Now()}},
			},
		},
	}
	sink := &fakeSink{}
	m := newTestMonitor(store, source, sink)

	m.RunPass(context.Background())
	m.RunPass(context.Background())

	if got := sink.kinds(); len(got) != 1 {
		t.Errorf("sink kinds after two passes = %v, want exactly one new_video", got)
	}
}

func TestRunPass_ProbeEmitsLiveStartedOnce(t *testing.T) {
	store := newFakeStore()
	seedChannel(store)

	source := &fakeSource{
		live: map[string]*model.LiveRef{
			testChannel: {VideoID: "lllllllllll", Title: "big stream"},
		},
	}
	sink := &fakeSink{}
	m := newTestMonitor(store, source, sink)

	m.RunPass(context.Background())
	m.RunPass(context.Background())

	if got := sink.kinds(); len(got) != 1 || got[0] != model.EventLiveStarted {
		t.Fatalf("sink kinds = %v, want [live_started]", got)
	}
	item := store.items["lllllllllll"]
	if !item.IsLiveNow || item.Type != model.TypeLive {
		t.Errorf("live item = %+v, want live type with isLiveNow", item)
	}
}

func TestRunPass_LiveBroadcastInUploadsFeedEmitsOnce(t *testing.T) {
	// A running stream often shows up in the uploads feed too, where it
	// carries no live signals. The feed copy must defer to the probe: one
	// item, one live_started, nothing double-counted.
	store := newFakeStore()
	seedChannel(store)

	source := &fakeSource{
		feeds: map[string]map[model.FeedCategory][]model.FeedStub{
			testChannel: {
				model.FeedVideos: {{VideoID: "lllllllllll", Title: "big stream", Published: time.Now()}},
			},
		},
		live: map[string]*model.LiveRef{
			testChannel: {VideoID: "lllllllllll", Title: "big stream"},
		},
	}
	sink := &fakeSink{}

	newTestMonitor(store, source, sink).RunPass(context.Background())

	if got := sink.kinds(); len(got) != 1 || got[0] != model.EventLiveStarted {
		t.Fatalf("sink kinds = %v, want [live_started]", got)
	}
	if len(store.events) != 1 {
		t.Errorf("persisted %d events for one item, want 1", len(store.events))
	}
	item := store.items["lllllllllll"]
	if !item.IsLiveNow || item.Type != model.TypeLive {
		t.Errorf("item = %+v, want live type with isLiveNow", item)
	}
	summary := sink.cycles[0]
	if summary.ItemsUpserted != 1 || summary.Events != 1 {
		t.Errorf("summary = %+v, want 1 item upserted and 1 event", summary)
	}
	if sink.envelopes[0].Channel.Title != "channel" {
		t.Errorf("envelope channel = %+v, want the stored metadata", sink.envelopes[0].Channel)
	}
}

func TestRunPass_StaleLiveRetired(t *testing.T) {
	store := newFakeStore()
	seedChannel(store)
	store.items["lllllllllll"] = model.Item{
		VideoID: "lllllllllll", ChannelID: testChannel, Title: "old stream",
		Type: model.TypeLive, IsLiveNow: true,
	}
	store.events = []model.Event{{ID: 1, Kind: model.EventLiveStarted, VideoID: "lllllllllll", ChannelID: testChannel}}

	source := &fakeSource{} // probe finds nothing live
	sink := &fakeSink{}

	newTestMonitor(store, source, sink).RunPass(context.Background())

	if _, ok := store.items["lllllllllll"]; ok {
		t.Error("stale live item survived retirement")
	}
	if len(store.events) != 0 {
		t.Errorf("retirement left %d durable events, want 0 (cascade)", len(store.events))
	}
	if got := sink.kinds(); len(got) != 1 || got[0] != model.EventLiveEnded {
		t.Errorf("sink kinds = %v, want [live_ended]", got)
	}
}

func TestRunPass_ProbeSwitchRetiresOldLive(t *testing.T) {
	// The channel moved to a new broadcast between passes: at most one item
	// per channel stays live.
	store := newFakeStore()
	seedChannel(store)
	store.items["ooooooooooo"] = model.Item{
		VideoID: "ooooooooooo", ChannelID: testChannel, Title: "old stream",
		Type: model.TypeLive, IsLiveNow: true,
	}

	source := &fakeSource{
		live: map[string]*model.LiveRef{
			testChannel: {VideoID: "nnnnnnnnnnn", Title: "new stream"},
		},
	}
	sink := &fakeSink{}

	newTestMonitor(store, source, sink).RunPass(context.Background())

	live, _ := store.ListLiveItems(context.Background(), testChannel)
	if len(live) != 1 || live[0].VideoID != "nnnnnnnnnnn" {
		t.Fatalf("live items = %+v, want only the new broadcast", live)
	}

	kinds := sink.kinds()
	if len(kinds) != 2 {
		t.Fatalf("sink kinds = %v, want live_started and live_ended", kinds)
	}
}

func TestRunPass_DeletedChannelSkipped(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{}
	sink := &fakeSink{}
	m := newTestMonitor(store, source, sink)

	// The channel is gone from the store by the time its check runs; its
	// cached record from an earlier cycle must not survive the skip.
	ghost := model.Channel{ChannelID: testChannel, Active: true}
	m.cache[testChannel] = ghost
	if _, _, err := m.checkChannel(context.Background(), ghost); err != nil {
		t.Fatalf("checkChannel on deleted channel: %v", err)
	}

	if source.feedCalls != 0 {
		t.Errorf("feeds fetched %d times for a deleted channel, want 0", source.feedCalls)
	}
	if len(sink.envelopes) != 0 {
		t.Errorf("deleted channel produced events: %v", sink.kinds())
	}
	if len(sink.errs) != 0 {
		t.Errorf("deleted channel reported errors: %v", sink.errs)
	}
	if _, ok := m.cache[testChannel]; ok {
		t.Error("deleted channel still cached after the skip")
	}
}

func TestRunPass_RetentionCapSparesBookmarks(t *testing.T) {
	store := newFakeStore()
	seedChannel(store)

	// 15 unbookmarked items, oldest first, plus 2 bookmarked ones older
	// than everything. With a cap of 10 exactly the 5 oldest unbookmarked
	// must go.
	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("vvvvvvvvv%02d", i)
		store.items[id] = model.Item{
			VideoID: id, ChannelID: testChannel, Title: "upload",
			Type: model.TypeVideo, Published: base.Add(time.Duration(i) * time.Minute),
		}
	}
	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("bbbbbbbbb%02d", i)
		store.items[id] = model.Item{
			VideoID: id, ChannelID: testChannel, Title: "keeper",
			Type: model.TypeVideo, Published: base.Add(-time.Hour), Bookmarked: true,
		}
	}

	sink := &fakeSink{}
	m := New(store, &fakeSource{}, classify.New(nil), sink, Config{Interval: time.Hour, ItemsPerChannel: 10})
	m.RunPass(context.Background())

	if len(store.items) != 12 {
		t.Fatalf("%d items survived cleanup, want 12 (10 capped + 2 bookmarked)", len(store.items))
	}
	for i := 0; i < 5; i++ {
		if _, ok := store.items[fmt.Sprintf("vvvvvvvvv%02d", i)]; ok {
			t.Errorf("item %02d is among the oldest five and should have been pruned", i)
		}
	}
	for i := 5; i < 15; i++ {
		if _, ok := store.items[fmt.Sprintf("vvvvvvvvv%02d", i)]; !ok {
			t.Errorf("item %02d is inside the cap and should have survived", i)
		}
	}
	for i := 0; i < 2; i++ {
		if _, ok := store.items[fmt.Sprintf("bbbbbbbbb%02d", i)]; !ok {
			t.Errorf("bookmarked item %02d was pruned despite its bookmark", i)
		}
	}
}

func TestRunPass_ShortsExcludedFromFeedScan(t *testing.T) {
	store := newFakeStore()
	seedChannel(store)

	source := &fakeSource{
		feeds: map[string]map[model.FeedCategory][]model.FeedStub{
			testChannel: {
				model.FeedVideos: {
					{VideoID: "aaaaaaaaaaa", Title: "real upload", Published: time.Now()},
					{VideoID: "bbbbbbbbbbb", Title: "clip #shorts", Published: time.Now()},
					{VideoID: "ccccccccccc", Title: "also in shorts feed", Published: time.Now()},
				},
				model.FeedShorts: {
					{VideoID: "ccccccccccc", Title: "also in shorts feed"},
					{VideoID: "ddddddddddd", Title: "pure short"},
				},
			},
		},
	}
	sink := &fakeSink{}

	newTestMonitor(store, source, sink).RunPass(context.Background())

	if got := sink.kinds(); len(got) != 1 || got[0] != model.EventNewVideo {
		t.Fatalf("sink kinds = %v, want a single new_video", got)
	}
	if sink.envelopes[0].Item.VideoID != "aaaaaaaaaaa" {
		t.Errorf("surviving item = %s, want aaaaaaaaaaa", sink.envelopes[0].Item.VideoID)
	}
	if len(store.items) != 1 {
		t.Errorf("persisted %d items, want 1", len(store.items))
	}
}

func TestRunPass_FailureIsContained(t *testing.T) {
	store := newFakeStore()
	seedChannel(store)
	other := "UCzyxwvutsrqponmlkjihgfe"
	store.channels[other] = model.Channel{ChannelID: other, Title: "other", Active: true}

	source := &fakeSource{
		feedErr: map[string]error{testChannel: errors.New("boom")},
		feeds: map[string]map[model.FeedCategory][]model.FeedStub{
			other: {
				model.FeedVideos: {{VideoID: "aaaaaaaaaaa", Title: "upload", Published: time.Now()}},
			},
		},
	}
	sink := &fakeSink{}

	newTestMonitor(store, source, sink).RunPass(context.Background())

	if len(sink.errs) != 1 {
		t.Fatalf("reported %d errors, want 1", len(sink.errs))
	}
	if len(sink.cycles) != 1 {
		t.Fatalf("reported %d cycles, want 1", len(sink.cycles))
	}
	summary := sink.cycles[0]
	if summary.Failures != 1 || summary.Channels != 2 {
		t.Errorf("summary = %+v, want 2 channels with 1 failure", summary)
	}
	// The healthy channel still produced its event.
	if got := sink.kinds(); len(got) != 1 || got[0] != model.EventNewVideo {
		t.Errorf("sink kinds = %v, want [new_video]", got)
	}
}

func TestStartStop(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	m := newTestMonitor(store, &fakeSource{}, sink)

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx) // idempotent
	if !m.Running() {
		t.Fatal("monitor not running after Start")
	}

	m.Stop()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
	if m.Running() {
		t.Error("monitor still reports running after Stop")
	}
}
