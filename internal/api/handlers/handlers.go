// Package handlers implements the HTTP handlers for the Sparky recommender.
// Handlers translate between the HTTP contracts and the pipeline; all
// recommendation logic lives behind the orchestrator.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beedev/sparky/internal/metrics"
	"github.com/beedev/sparky/internal/orchestrator"
	"github.com/beedev/sparky/internal/sessions"
	"github.com/beedev/sparky/pkg/models"
)

// HealthChecker is the slice of a collaborator the health endpoints probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Pipeline runs one query end to end. Implemented by the orchestrator.
type Pipeline interface {
	Handle(ctx context.Context, query string, userCtx models.UserContext) *orchestrator.Result
}

// Handlers holds all handler dependencies. The health checkers are nilable;
// a nil collaborator reports "disabled" rather than failing the probe.
type Handlers struct {
	Pipeline Pipeline
	Sessions sessions.Store
	Metrics  *metrics.Pipeline

	Graph      HealthChecker
	Relational HealthChecker
	Embeddings HealthChecker
	LLM        HealthChecker
}

// New creates a Handlers instance.
func New(p Pipeline, sess sessions.Store, m *metrics.Pipeline) *Handlers {
	return &Handlers{Pipeline: p, Sessions: sess, Metrics: m}
}

// ══════════════════════════════════════════════════════════════
// ── Chat ─────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ChatMessage handles POST /api/v1/sparky/message. Each message runs the
// full pipeline; the conversation history feeds expertise detection on the
// following turns.
func (h *Handlers) ChatMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	session, err := h.Sessions.GetOrCreate(r.Context(), req.SessionID, req.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	userCtx := models.UserContext{
		UserID:            req.UserID,
		SessionID:         session.ID,
		PreferredLanguage: req.Language,
	}
	for _, turn := range session.Turns {
		userCtx.PreviousQueries = append(userCtx.PreviousQueries, turn.Query)
		if turn.Mode != "" {
			userCtx.ExpertiseHistory = append(userCtx.ExpertiseHistory, turn.Mode)
		}
	}

	result := h.Pipeline.Handle(r.Context(), req.Message, userCtx)

	turn := models.ChatTurn{
		Query:      req.Message,
		Confidence: result.Response.OverallConfidence,
		Packages:   len(result.Response.Packages),
		At:         time.Now().UTC(),
	}
	if result.Intent != nil {
		turn.Mode = string(result.Intent.Mode)
	}
	if err := h.Sessions.AppendTurn(r.Context(), session.ID, turn); err != nil {
		log.Warn().Err(err).Str("session", session.ID).Msg("append turn failed")
	}

	resp := models.ChatResponse{
		Response:       chatText(result.Response),
		Requirements:   result.Intent,
		Packages:       result.Response.Packages,
		Confidence:     result.Response.OverallConfidence,
		ConversationID: session.ID,
	}
	if result.Intent != nil && result.Intent.Mode == models.ModeGuided {
		resp.StepByStepBuilder = &models.StepByStepBuilder{
			Steps:       []string{"PowerSource", "Feeder", "Cooler", "Accessories"},
			CurrentStep: 0,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// chatText flattens the composed response into the single chat string.
func chatText(resp *models.Response) string {
	parts := []string{resp.Title}
	if resp.Summary != "" {
		parts = append(parts, resp.Summary)
	}
	if resp.NeedsFollowUp && len(resp.FollowUpQuestions) > 0 {
		parts = append(parts, strings.Join(resp.FollowUpQuestions, " "))
	}
	return strings.Join(parts, "\n\n")
}

// ══════════════════════════════════════════════════════════════
// ── Enterprise ───────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// Recommendations handles POST /api/v1/enterprise/recommendations: the
// full envelope with intent, search metadata and trace identifiers.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	userCtx := req.UserContext
	if req.SessionID != "" {
		userCtx.SessionID = req.SessionID
	}

	result := h.Pipeline.Handle(r.Context(), req.Query, userCtx)

	response := *result.Response
	if req.MaxResults > 0 && len(response.Packages) > req.MaxResults {
		response.Packages = response.Packages[:req.MaxResults]
	}
	if !req.IncludeExplanations {
		response.DetailedExplanation = ""
		response.TechnicalNotes = nil
		response.PackageDescriptions = nil
	}

	resp := models.RecommendationResponse{
		Response:       response,
		TraceID:        result.Trace.TraceID,
		ProcessingTime: result.Trace.TotalMs,
	}
	if result.Intent != nil {
		resp.Intent = *result.Intent
	}
	if result.Recs != nil {
		resp.Metadata = result.Recs.Metadata
	}

	respondJSON(w, http.StatusOK, resp)
}

// PipelineMetrics handles GET /api/v1/enterprise/metrics: the rolling
// per-stage statistics as JSON. Prometheus exposition lives at /metrics.
func (h *Handlers) PipelineMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"stages": h.Metrics.Snapshot(),
	})
}

// ══════════════════════════════════════════════════════════════
// ── Helpers ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response failed")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
