package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/tubewatch/internal/middleware"
	"github.com/mathieu-neron/tubewatch/internal/model"
	"github.com/mathieu-neron/tubewatch/internal/repository"
)

type ItemHandler struct {
	store *repository.Store
}

func NewItemHandler(store *repository.Store) *ItemHandler {
	return &ItemHandler{store: store}
}

// List handles GET /api/items?channel=UC...
func (h *ItemHandler) List(c fiber.Ctx) error {
	channelID, errMsg := middleware.ValidateChannelID(fiber.Query[string](c, "channel"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	items, err := h.store.ListItemsByChannel(c.Context(), channelID)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list items")
	}
	return c.JSON(emptyIfNil(items))
}

// Live handles GET /api/items/live; an optional channel query narrows to one
// channel.
func (h *ItemHandler) Live(c fiber.Ctx) error {
	channelID, errMsg := optionalChannel(c)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	items, err := h.store.ListLiveItems(c.Context(), channelID)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list live items")
	}
	return c.JSON(emptyIfNil(items))
}

// Scheduled handles GET /api/items/scheduled; an optional channel query
// narrows to one channel.
func (h *ItemHandler) Scheduled(c fiber.Ctx) error {
	channelID, errMsg := optionalChannel(c)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	items, err := h.store.ListScheduledItems(c.Context(), channelID)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list scheduled items")
	}
	return c.JSON(emptyIfNil(items))
}

// Get handles GET /api/items/:videoId
func (h *ItemHandler) Get(c fiber.Ctx) error {
	videoID, errMsg := middleware.ValidateVideoID(c.Params("videoId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	item, err := h.store.GetItem(c.Context(), videoID)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch item")
	}
	if item == nil {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Item not found")
	}
	return c.JSON(item)
}

func optionalChannel(c fiber.Ctx) (string, string) {
	raw := fiber.Query[string](c, "channel")
	if raw == "" {
		return "", ""
	}
	return middleware.ValidateChannelID(raw)
}

func emptyIfNil(items []model.Item) []model.Item {
	if items == nil {
		return []model.Item{}
	}
	return items
}
