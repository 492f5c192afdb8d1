package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics holds all Prometheus collectors for the tubewatch backend.
var Metrics = struct {
	EventsTotal      *prometheus.CounterVec
	CyclesTotal      prometheus.Counter
	CycleDuration    prometheus.Histogram
	CheckFailures    prometheus.Counter
	SSESubscribers   prometheus.Gauge
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	DBPoolActive     prometheus.GaugeFunc
	DBPoolIdle       prometheus.GaugeFunc
}{}

// InitMetrics registers all Prometheus metrics. Call once at startup.
func InitMetrics(pool *pgxpool.Pool) {
	Metrics.EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubewatch_events_total",
			Help: "Total lifecycle events detected, by kind.",
		},
		[]string{"kind"},
	)

	Metrics.CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tubewatch_cycles_total",
			Help: "Total monitoring passes completed.",
		},
	)

	Metrics.CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tubewatch_cycle_duration_seconds",
			Help:    "Duration of a full monitoring pass.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	Metrics.CheckFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tubewatch_check_failures_total",
			Help: "Total per-channel check failures.",
		},
	)

	Metrics.SSESubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubewatch_sse_subscribers",
			Help: "Number of connected event-stream subscribers.",
		},
	)

	Metrics.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tubewatch_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	Metrics.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubewatch_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	// DB pool gauges — read live stats from pgxpool
	if pool != nil {
		Metrics.DBPoolActive = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tubewatch_db_connection_pool_active",
				Help: "Number of active database connections.",
			},
			func() float64 {
				return float64(pool.Stat().AcquiredConns())
			},
		)

		Metrics.DBPoolIdle = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tubewatch_db_connection_pool_idle",
				Help: "Number of idle database connections.",
			},
			func() float64 {
				return float64(pool.Stat().IdleConns())
			},
		)

		prometheus.MustRegister(Metrics.DBPoolActive)
		prometheus.MustRegister(Metrics.DBPoolIdle)
	}

	prometheus.MustRegister(
		Metrics.EventsTotal,
		Metrics.CyclesTotal,
		Metrics.CycleDuration,
		Metrics.CheckFailures,
		Metrics.SSESubscribers,
		Metrics.RequestDuration,
		Metrics.RequestsInFlight,
	)
}

// MetricsMiddleware records request duration and in-flight count for Prometheus.
func MetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Don't instrument the /metrics endpoint itself
		if c.Path() == "/metrics" {
			return c.Next()
		}

		// Copy path and method into owned strings BEFORE c.Next() — Fiber
		// returns slices backed by the fasthttp buffer which can be reused
		// or overwritten by handlers (especially fasthttpadaptor).
		path := string([]byte(c.Path()))
		method := string([]byte(c.Method()))
		endpoint := sanitizeEndpoint(path)

		Metrics.RequestsInFlight.Inc()
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())

		Metrics.RequestDuration.WithLabelValues(endpoint, method, status).Observe(duration)
		Metrics.RequestsInFlight.Dec()

		return err
	}
}

// sanitizeEndpoint normalizes paths to avoid cardinality explosion.
func sanitizeEndpoint(path string) string {
	switch {
	case len(path) > 14 && path[:14] == "/api/channels/":
		return "/api/channels/:channelId"
	case len(path) > 11 && path[:11] == "/api/items/":
		return "/api/items/:videoId"
	case len(path) > 15 && path[:15] == "/api/bookmarks/":
		return "/api/bookmarks/:videoId"
	default:
		return path
	}
}

// MetricsHandler serves the Prometheus /metrics endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}
