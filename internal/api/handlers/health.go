package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthProbeTimeout = 5 * time.Second

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "sparky-recommender",
	})
}

// Liveness handles GET /health/liveness. Always 200 while the process
// serves requests.
func (h *Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/readiness. The service is un-ready only
// when the graph is unreachable; every strategy needs it. Degraded
// collaborators (LLM, embeddings) fall back instead.
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	if h.Graph != nil {
		if err := h.Graph.HealthCheck(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"graph":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// DetailedHealth handles GET /health/detailed: per-collaborator status.
func (h *Handlers) DetailedHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	checks := map[string]HealthChecker{
		"graph":      h.Graph,
		"relational": h.Relational,
		"embeddings": h.Embeddings,
		"llm":        h.LLM,
	}

	components := make(map[string]string, len(checks))
	status := "healthy"
	for name, checker := range checks {
		switch {
		case checker == nil:
			components[name] = "disabled"
		default:
			if err := checker.HealthCheck(ctx); err != nil {
				components[name] = err.Error()
				status = "degraded"
			} else {
				components[name] = "ok"
			}
		}
	}
	if components["graph"] != "ok" && components["graph"] != "disabled" {
		status = "unhealthy"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
	})
}
