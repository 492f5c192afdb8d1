package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/tubewatch/internal/middleware"
	"github.com/mathieu-neron/tubewatch/internal/model"
	"github.com/mathieu-neron/tubewatch/internal/repository"
)

type BookmarkHandler struct {
	store *repository.Store
}

func NewBookmarkHandler(store *repository.Store) *BookmarkHandler {
	return &BookmarkHandler{store: store}
}

// List handles GET /api/bookmarks
func (h *BookmarkHandler) List(c fiber.Ctx) error {
	items, err := h.store.ListBookmarkedItems(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list bookmarks")
	}
	return c.JSON(emptyIfNil(items))
}

// Add handles POST /api/bookmarks
func (h *BookmarkHandler) Add(c fiber.Ctx) error {
	var req model.BookmarkRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Request body must be JSON")
	}
	return h.set(c, req.VideoID, true)
}

// Remove handles DELETE /api/bookmarks/:videoId
func (h *BookmarkHandler) Remove(c fiber.Ctx) error {
	return h.set(c, c.Params("videoId"), false)
}

func (h *BookmarkHandler) set(c fiber.Ctx, rawID string, bookmarked bool) error {
	videoID, errMsg := middleware.ValidateVideoID(rawID)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	if err := h.store.SetBookmark(c.Context(), videoID, bookmarked); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Item not found")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update bookmark")
	}

	return c.JSON(fiber.Map{"videoId": videoID, "bookmarked": bookmarked})
}
