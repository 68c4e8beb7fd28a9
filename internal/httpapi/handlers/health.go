// Package handlers implements the read-only observability surface's
// fiber route handlers (SPEC_FULL §13), adapted from the reference
// service's internal/api/handlers package.
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mt-monitoring/alarmd/internal/cache"
	"github.com/mt-monitoring/alarmd/internal/store"
)

// HealthHandler reports process liveness and store connectivity.
type HealthHandler struct {
	store     *store.Store
	cache     *cache.TelemetryCache
	startedAt time.Time
}

func NewHealthHandler(st *store.Store, tc *cache.TelemetryCache, startedAt time.Time) *HealthHandler {
	return &HealthHandler{store: st, cache: tc, startedAt: startedAt}
}

// Health adapts the reference service's HealthHandler.Health to this
// service's domain: store ping instead of a generic DB ping, device
// cache size instead of active-service count.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	storeStatus := "connected"
	if err := h.store.Ping(); err != nil {
		storeStatus = "disconnected"
	}

	return c.JSON(fiber.Map{
		"status":       "ok",
		"uptime":       time.Since(h.startedAt).String(),
		"store":        storeStatus,
		"cached_devices": h.cache.Len(),
	})
}
