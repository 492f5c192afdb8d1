package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/tubewatch/internal/middleware"
	"github.com/mathieu-neron/tubewatch/internal/model"
	"github.com/mathieu-neron/tubewatch/internal/repository"
)

type exportResponse struct {
	Channels    []model.Channel         `json:"channels"`
	Items       map[string][]model.Item `json:"items"` // keyed by channel id
	GeneratedAt string                  `json:"generatedAt"`
}

type ExportHandler struct {
	store *repository.Store
}

func NewExportHandler(store *repository.Store) *ExportHandler {
	return &ExportHandler{store: store}
}

// Export handles GET /api/export: a full dump of subscriptions and items for
// backup or migration.
func (h *ExportHandler) Export(c fiber.Ctx) error {
	channels, err := h.store.ListChannels(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to export channels")
	}

	items := make(map[string][]model.Item, len(channels))
	for _, ch := range channels {
		list, err := h.store.ListItemsByChannel(c.Context(), ch.ChannelID)
		if err != nil {
			return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to export items")
		}
		items[ch.ChannelID] = emptyIfNil(list)
	}

	if channels == nil {
		channels = []model.Channel{}
	}

	return c.JSON(exportResponse{
		Channels:    channels,
		Items:       items,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
