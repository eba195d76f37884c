package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mvillareal/intake-scheduler/internal/http/handlers"
	httpmiddleware "github.com/mvillareal/intake-scheduler/internal/http/middleware"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger            *logging.Logger
	SubmissionHandler *handlers.SubmissionHandler
	AdminHandler      *handlers.AdminHandler
	AdminAuthSecret   string
	MetricsHandler    http.Handler

	// Requests/sec and burst for the public webhook; zero disables limiting.
	WebhookRate  float64
	WebhookBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.SubmissionHandler != nil {
			webhook := public
			if cfg.WebhookRate > 0 {
				webhook = public.With(httpmiddleware.RateLimit(cfg.WebhookRate, cfg.WebhookBurst))
			}
			webhook.Post("/webhooks/submission", cfg.SubmissionHandler.Handle)
		}
	})

	// Admin endpoints (JWT protected)
	if cfg.AdminHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/status", cfg.AdminHandler.Status)
			admin.Post("/rebuild", cfg.AdminHandler.TriggerRebuild)
			admin.Post("/integrity", cfg.AdminHandler.TriggerIntegrity)
		})
	}

	return r
}
