package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Priya8975/alert-notifications/internal/engine"
	"github.com/Priya8975/alert-notifications/internal/metrics"
	"github.com/Priya8975/alert-notifications/internal/settings"
)

// Hub is the live update channel the router exposes on /ws.
type Hub interface {
	Broadcaster
	ClientCounter
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

// Store is everything the API reads and writes.
type Store interface {
	AlertStore
	SummaryStore
}

// RouterDeps wires the handlers. Metrics, RateLimiter and Page are optional.
type RouterDeps struct {
	Store       Store
	Notifier    Notifier
	QueueDepth  QueueDepthFunc
	Hub         Hub
	Page        http.Handler
	Metrics     *metrics.Metrics
	RateLimiter *engine.RateLimiter
	RateLimit   int
	Health      map[string]Pinger
	PageSize    int
	Logger      *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(corsMiddleware)

	alertHandler := NewAlertHandler(deps.Store, deps.Notifier, deps.Hub, deps.PageSize, logger)
	dashHandler := NewDashboardHandler(deps.Store, deps.QueueDepth, deps.Hub, logger)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	if deps.Hub != nil {
		r.Get("/ws", deps.Hub.HandleWebSocket)
	}
	if deps.Page != nil {
		r.Method(http.MethodGet, settings.NotificationsListPath, deps.Page)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.RateLimiter != nil && deps.RateLimit > 0 {
			r.Use(rateLimitMiddleware(deps.RateLimiter, deps.RateLimit))
		}

		r.Get("/health", HealthHandler(deps.Health))
		r.Get("/notifications/summary", dashHandler.Summary)

		r.Route("/events/subscriptions", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Post("/", alertHandler.Create)
			r.Get("/name/{name}", alertHandler.GetByName)
			r.Get("/{id}", alertHandler.Get)
			r.Patch("/{id}", alertHandler.Update)
			r.Delete("/{id}", alertHandler.Delete)
			r.Post("/{id}/test", alertHandler.Test)
			r.Get("/{id}/deliveries", alertHandler.Deliveries)
		})
	})

	return r
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Auth-User")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
