// Package router assembles the HTTP surface: the voice webhook, health
// check, and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clearbook-ai/dental-voice-platform/internal/http/handlers"
	httpmiddleware "github.com/clearbook-ai/dental-voice-platform/internal/http/middleware"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger           *logging.Logger
	ToolCallHandler  *handlers.ToolCallHandler
	WebhookJWTSecret string
	MetricsHandler   http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	metrics := cfg.MetricsHandler
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Handle("/metrics", metrics)

	if cfg.ToolCallHandler != nil {
		r.Group(func(hooks chi.Router) {
			hooks.Use(httpmiddleware.WebhookAuth(cfg.WebhookJWTSecret, cfg.Logger))
			hooks.Post("/webhooks/voice/tool-call", cfg.ToolCallHandler.Handle)
		})
	}

	return r
}
