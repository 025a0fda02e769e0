// Package api assembles the HTTP surface: the chat endpoint, the
// enterprise recommendation endpoint, health probes and metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beedev/sparky/internal/api/handlers"
	"github.com/beedev/sparky/internal/api/middleware"
	"github.com/beedev/sparky/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	auth := middleware.NewAPIKeyAuth()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware)

	// Health & info
	r.Get("/health", h.Health)
	r.Get("/health/liveness", h.Liveness)
	r.Get("/health/readiness", h.Readiness)
	r.Get("/health/detailed", h.DetailedHealth)
	r.Get("/version", versionHandler(cfg))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sparky", func(r chi.Router) {
			r.Post("/message", h.ChatMessage)
		})

		r.Route("/enterprise", func(r chi.Router) {
			r.Post("/recommendations", h.Recommendations)
			r.Get("/metrics", h.PipelineMetrics)
		})
	})

	return r
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"` + cfg.Version + `","service":"sparky-recommender"}`))
	}
}
