package handler

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/tubewatch/internal/middleware"
	"github.com/mathieu-neron/tubewatch/internal/model"
	"github.com/mathieu-neron/tubewatch/internal/monitor"
	"github.com/mathieu-neron/tubewatch/internal/repository"
	"github.com/mathieu-neron/tubewatch/internal/service"
)

type statsResponse struct {
	Channels  int64               `json:"channels"`
	Items     int64               `json:"items"`
	Events    int64               `json:"events"`
	Running   bool                `json:"monitorRunning"`
	LastCycle *model.CycleSummary `json:"lastCycle,omitempty"`
}

type StatsHandler struct {
	store *repository.Store
	cache *service.CacheService
	mon   *monitor.Monitor
	b     *Broadcaster
}

func NewStatsHandler(store *repository.Store, cache *service.CacheService, mon *monitor.Monitor, b *Broadcaster) *StatsHandler {
	return &StatsHandler{store: store, cache: cache, mon: mon, b: b}
}

// GetStats handles GET /api/stats
func (h *StatsHandler) GetStats(c fiber.Ctx) error {
	if h.cache != nil {
		if cached, err := h.cache.GetStats(c.Context()); err != nil {
			log.Printf("cache: stats get error: %v", err)
		} else if cached != nil {
			var resp statsResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				// Running state and last cycle are live values, not cached.
				resp.Running = h.mon.Running()
				resp.LastCycle = h.b.LastCycle()
				return c.JSON(resp)
			}
		}
	}

	channels, items, events, err := h.store.Counts(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch statistics")
	}

	resp := statsResponse{
		Channels:  channels,
		Items:     items,
		Events:    events,
		Running:   h.mon.Running(),
		LastCycle: h.b.LastCycle(),
	}

	if h.cache != nil {
		if err := h.cache.SetStats(c.Context(), resp); err != nil {
			log.Printf("cache: stats set error: %v", err)
		}
	}

	return c.JSON(resp)
}
