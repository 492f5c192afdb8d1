package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/mathieu-neron/tubewatch/internal/handler"
	"github.com/mathieu-neron/tubewatch/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Channel  *handler.ChannelHandler
	Item     *handler.ItemHandler
	Bookmark *handler.BookmarkHandler
	Event    *handler.EventHandler
	Stream   *handler.StreamHandler
	RSS      *handler.RSSHandler
	Stats    *handler.StatsHandler
	Export   *handler.ExportHandler
	Health   *handler.HealthHandler
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, corsOrigins string) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(handler.MetricsMiddleware())
	app.Use(middleware.NewCORS(corsOrigins))

	// Health and metrics (outside the API group, no rate limiting)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	// RSS feed for external readers
	app.Get("/feed.rss", h.RSS.Feed)

	readLimit := middleware.NewReadRateLimiter().Handler()
	mutateLimit := middleware.NewMutateRateLimiter().Handler()
	exportLimit := middleware.NewExportRateLimiter().Handler()

	// API routes
	api := app.Group("/api")

	// Channel routes
	api.Get("/channels", h.Channel.List, readLimit)
	api.Post("/channels", h.Channel.Subscribe, mutateLimit)
	api.Get("/channels/:channelId", h.Channel.GetByChannelID, readLimit)
	api.Patch("/channels/:channelId", h.Channel.SetActive, mutateLimit)
	api.Delete("/channels/:channelId", h.Channel.Unsubscribe, mutateLimit)

	// Item routes (static segments before the :videoId match)
	api.Get("/items", h.Item.List, readLimit)
	api.Get("/items/live", h.Item.Live, readLimit)
	api.Get("/items/scheduled", h.Item.Scheduled, readLimit)
	api.Get("/items/:videoId", h.Item.Get, readLimit)

	// Bookmark routes
	api.Get("/bookmarks", h.Bookmark.List, readLimit)
	api.Post("/bookmarks", h.Bookmark.Add, mutateLimit)
	api.Delete("/bookmarks/:videoId", h.Bookmark.Remove, mutateLimit)

	// Event routes
	api.Get("/events", h.Event.Recent, readLimit)
	api.Get("/events/delta", h.Event.Delta, readLimit)
	api.Get("/events/stream", h.Stream.Stream)

	// Stats and export
	api.Get("/stats", h.Stats.GetStats, readLimit)
	api.Get("/export", h.Export.Export, exportLimit)
}
