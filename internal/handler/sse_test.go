package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mathieu-neron/tubewatch/internal/model"
)

func testEnvelope(kind model.EventKind) model.EventEnvelope {
	return model.EventEnvelope{
		Kind:      kind,
		Item:      model.Item{VideoID: "aaaaaaaaaaa", ChannelID: "UCabcdefghijklmnopqrstuv"},
		Channel:   model.Channel{ChannelID: "UCabcdefghijklmnopqrstuv"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(nil)

	_, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()

	b.Event(testEnvelope(model.EventNewVideo))

	for i, ch := range []<-chan sseMessage{ch1, ch2} {
		select {
		case msg := <-ch:
			if msg.event != "new_video" {
				t.Errorf("subscriber %d event = %q, want new_video", i, msg.event)
			}
			var env model.EventEnvelope
			if err := json.Unmarshal(msg.data, &env); err != nil {
				t.Errorf("subscriber %d data not valid JSON: %v", i, err)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestBroadcaster_SlowConsumerDrops(t *testing.T) {
	b := NewBroadcaster(nil)
	_, ch := b.Subscribe()

	// Overfill the queue; the overflow must be dropped, not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+5; i++ {
			b.Event(testEnvelope(model.EventNewVideo))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow consumer")
	}

	if got := len(ch); got != subscriberBuffer {
		t.Errorf("queued %d messages, want %d (rest dropped)", got, subscriberBuffer)
	}
}

func TestBroadcaster_UnsubscribeClosesQueue(t *testing.T) {
	b := NewBroadcaster(nil)
	id, ch := b.Subscribe()

	b.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("queue still open after unsubscribe")
	}

	// Events after unsubscribe must not panic or reach the old queue.
	b.Event(testEnvelope(model.EventLiveStarted))
}

func TestBroadcaster_LastCycle(t *testing.T) {
	b := NewBroadcaster(nil)

	if b.LastCycle() != nil {
		t.Fatal("LastCycle before any pass should be nil")
	}

	b.Cycle(model.CycleSummary{Channels: 3, Events: 2})

	got := b.LastCycle()
	if got == nil || got.Channels != 3 || got.Events != 2 {
		t.Errorf("LastCycle() = %+v, want the recorded summary", got)
	}
}
