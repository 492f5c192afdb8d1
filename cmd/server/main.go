package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/tubewatch/internal/classify"
	"github.com/mathieu-neron/tubewatch/internal/config"
	"github.com/mathieu-neron/tubewatch/internal/db"
	"github.com/mathieu-neron/tubewatch/internal/fetch"
	"github.com/mathieu-neron/tubewatch/internal/handler"
	"github.com/mathieu-neron/tubewatch/internal/middleware"
	"github.com/mathieu-neron/tubewatch/internal/monitor"
	"github.com/mathieu-neron/tubewatch/internal/repository"
	"github.com/mathieu-neron/tubewatch/internal/router"
	"github.com/mathieu-neron/tubewatch/internal/scrape"
	"github.com/mathieu-neron/tubewatch/internal/service"
)

func main() {
	cfg := config.Load()
	middleware.InitLogger(cfg.LogLevel, "tubewatch")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	store := repository.NewStore(pool)
	handler.InitMetrics(pool)

	// Scraping pipeline
	client := fetch.New(fetch.Options{
		Concurrency: cfg.FetchConcurrency,
		Retries:     cfg.FetchRetries,
		Timeout:     cfg.FetchTimeout,
		MinDelay:    cfg.FetchMinDelay,
		MaxDelay:    cfg.FetchMaxDelay,
	})
	scraper := scrape.New(client)

	var resolver classify.Resolver
	if cfg.ResolveItemDetails {
		resolver = scraper
	}
	classifier := classify.New(resolver)

	// Caching and services
	cache := service.NewCacheService(cfg.RedisURL)
	defer cache.Close()

	channelSvc := service.NewChannelService(store, scraper, cache)
	eventSvc := service.NewEventService(store)

	// Monitor wiring: the broadcaster is its sink
	broadcaster := handler.NewBroadcaster(cache)
	mon := monitor.New(store, scraper, classifier, broadcaster, monitor.Config{
		Interval:        cfg.PollInterval,
		MaxFeedItems:    cfg.MaxFeedItems,
		ItemsPerChannel: cfg.ItemsPerChannel,
		EventRetention:  cfg.EventRetention,
	})
	mon.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "tubewatch API",
		ServerHeader: "tubewatch",
	})

	router.Setup(app, &router.Handlers{
		Channel:  handler.NewChannelHandler(channelSvc),
		Item:     handler.NewItemHandler(store),
		Bookmark: handler.NewBookmarkHandler(store),
		Event:    handler.NewEventHandler(eventSvc),
		Stream:   handler.NewStreamHandler(broadcaster),
		RSS:      handler.NewRSSHandler(eventSvc),
		Stats:    handler.NewStatsHandler(store, cache, mon, broadcaster),
		Export:   handler.NewExportHandler(store),
		Health:   handler.NewHealthHandler(pool, cache, mon),
	}, cfg.CORSOrigins)

	// Graceful shutdown: stop the server, then let an in-flight pass finish.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Println("shutdown signal received")
		mon.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("tubewatch backend starting on :%s (env=%s, poll=%s)", cfg.Port, cfg.Environment, cfg.PollInterval)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}

	select {
	case <-mon.Done():
	case <-time.After(30 * time.Second):
		log.Println("monitor did not stop in time")
	}
	log.Println("shutdown complete")
}
