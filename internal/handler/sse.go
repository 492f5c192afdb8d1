package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"

	"github.com/mathieu-neron/tubewatch/internal/model"
	"github.com/mathieu-neron/tubewatch/internal/service"
)

// subscriberBuffer bounds each subscriber's queue; a slow consumer drops
// messages rather than stalling the monitor.
const subscriberBuffer = 16

type sseMessage struct {
	event string
	data  []byte
}

// Broadcaster fans monitor output out to event-stream subscribers, keeps the
// channel cache coherent and feeds the Prometheus counters. It is the
// monitor's sink.
type Broadcaster struct {
	cache *service.CacheService

	mu        sync.Mutex
	subs      map[uint64]chan sseMessage
	nextID    uint64
	lastCycle *model.CycleSummary
}

func NewBroadcaster(cache *service.CacheService) *Broadcaster {
	return &Broadcaster{
		cache: cache,
		subs:  make(map[uint64]chan sseMessage),
	}
}

// Event receives one lifecycle transition from the monitor.
func (b *Broadcaster) Event(env model.EventEnvelope) {
	if Metrics.EventsTotal != nil {
		Metrics.EventsTotal.WithLabelValues(string(env.Kind)).Inc()
	}

	if b.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := b.cache.InvalidateChannel(ctx, env.Channel.ChannelID); err != nil {
			log.Printf("broadcast: cache invalidate error: %v", err)
		}
		cancel()
	}

	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("broadcast: marshal event: %v", err)
		return
	}
	b.send(sseMessage{event: string(env.Kind), data: data})
}

// Cycle receives the summary of a completed monitoring pass.
func (b *Broadcaster) Cycle(summary model.CycleSummary) {
	if Metrics.CyclesTotal != nil {
		Metrics.CyclesTotal.Inc()
		Metrics.CycleDuration.Observe(summary.Duration.Seconds())
	}

	b.mu.Lock()
	b.lastCycle = &summary
	b.mu.Unlock()

	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	b.send(sseMessage{event: "cycle", data: data})
}

// Error receives a per-channel check failure.
func (b *Broadcaster) Error(err error, channelID string) {
	if Metrics.CheckFailures != nil {
		Metrics.CheckFailures.Inc()
	}
	if channelID != "" {
		log.Printf("monitor: channel %s: %v", channelID, err)
	} else {
		log.Printf("monitor: %v", err)
	}
}

// LastCycle returns the most recent pass summary, nil before the first pass.
func (b *Broadcaster) LastCycle() *model.CycleSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCycle
}

// Subscribe registers a new subscriber and returns its id and queue.
func (b *Broadcaster) Subscribe() (uint64, <-chan sseMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan sseMessage, subscriberBuffer)
	b.subs[id] = ch

	if Metrics.SSESubscribers != nil {
		Metrics.SSESubscribers.Set(float64(len(b.subs)))
	}
	return id, ch
}

// Unsubscribe removes a subscriber and closes its queue.
func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	if Metrics.SSESubscribers != nil {
		Metrics.SSESubscribers.Set(float64(len(b.subs)))
	}
}

// send fans a message out to every subscriber without blocking; full queues
// drop the message.
func (b *Broadcaster) send(msg sseMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			log.Printf("broadcast: subscriber %d queue full, dropping %s", id, msg.event)
		}
	}
}

// StreamHandler serves GET /api/events/stream as Server-Sent Events.
type StreamHandler struct {
	b *Broadcaster
}

func NewStreamHandler(b *Broadcaster) *StreamHandler {
	return &StreamHandler{b: b}
}

func (h *StreamHandler) Stream(c fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	id, ch := h.b.Subscribe()

	c.RequestCtx().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.b.Unsubscribe(id)

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.event, msg.data)
				if err := w.Flush(); err != nil {
					return
				}
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}
