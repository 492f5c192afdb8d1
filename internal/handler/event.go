package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/tubewatch/internal/middleware"
	"github.com/mathieu-neron/tubewatch/internal/service"
)

const maxEventLimit = 500

type EventHandler struct {
	svc *service.EventService
}

func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// Recent handles GET /api/events?limit=N
func (h *EventHandler) Recent(c fiber.Ctx) error {
	limit := fiber.Query[int](c, "limit")
	if limit < 0 || limit > maxEventLimit {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_PARAM", "limit must be between 0 and 500")
	}

	events, err := h.svc.Recent(c.Context(), limit)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch events")
	}
	return c.JSON(events)
}

// Delta handles GET /api/events/delta?since=TIMESTAMP
func (h *EventHandler) Delta(c fiber.Ctx) error {
	sinceStr := fiber.Query[string](c, "since")
	if sinceStr == "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "MISSING_PARAM", "since query parameter is required (RFC3339 timestamp)")
	}

	since, err := time.Parse(time.RFC3339, sinceStr)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_PARAM", "since must be a valid RFC3339 timestamp")
	}

	resp, err := h.svc.Delta(c.Context(), since)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch event delta")
	}
	return c.JSON(resp)
}
