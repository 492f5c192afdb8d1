package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/tubewatch/internal/monitor"
	"github.com/mathieu-neron/tubewatch/internal/service"
)

type HealthHandler struct {
	pool  *pgxpool.Pool
	cache *service.CacheService
	mon   *monitor.Monitor
}

func NewHealthHandler(pool *pgxpool.Pool, cache *service.CacheService, mon *monitor.Monitor) *HealthHandler {
	return &HealthHandler{pool: pool, cache: cache, mon: mon}
}

// Live handles GET /health/live: process is up.
func (h *HealthHandler) Live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /health/ready: database reachable and monitor armed.
// Redis is reported but never fails readiness since caching is optional.
func (h *HealthHandler) Ready(c fiber.Ctx) error {
	checks := fiber.Map{
		"database": "ok",
		"redis":    "disabled",
		"monitor":  "stopped",
	}
	healthy := true

	pingCtx, pingCancel := context.WithTimeout(c.Context(), 2*time.Second)
	if err := h.pool.Ping(pingCtx); err != nil {
		checks["database"] = "unreachable"
		healthy = false
	}
	pingCancel()

	if rdb := h.cache.Client(); rdb != nil {
		redisCtx, redisCancel := context.WithTimeout(c.Context(), 2*time.Second)
		if err := rdb.Ping(redisCtx).Err(); err != nil {
			checks["redis"] = "unreachable"
		} else {
			checks["redis"] = "ok"
		}
		redisCancel()
	}

	if h.mon.Running() {
		checks["monitor"] = "running"
	} else {
		healthy = false
	}

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"checks": checks})
}
