package rest

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hordelabs/horde/internal/config"
	"github.com/hordelabs/horde/internal/middleware"
	"github.com/hordelabs/horde/internal/observability"
)

func NewRouter(
	convH *ConversationHandler,
	msgH *MessageHandler,
	eventsH *EventsHandler,
	db *sql.DB,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(observability.MetricsMiddleware(cfg.ServiceName))
	r.Use(middleware.Recovery())
	r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

	r.Get("/health/live", observability.HealthLiveHandler)
	r.Get("/health/ready", observability.HealthReadyHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(p chi.Router) {
		p.Use(middleware.JWT(cfg.JWTSecret))

		p.Post("/api/conversations", convH.Create)
		p.Get("/api/conversations", convH.List)

		p.Get("/api/conversations/{id}/messages", msgH.List)
		p.Post("/api/conversations/{id}/messages", msgH.Send)
		p.Post("/api/conversations/{id}/read", msgH.MarkRead)
		p.Get("/api/unread", msgH.Unread)

		p.Get("/api/events", eventsH.Subscribe)
	})

	if cfg.TracingEnabled {
		return otelhttp.NewHandler(r, cfg.ServiceName)
	}
	return r
}
