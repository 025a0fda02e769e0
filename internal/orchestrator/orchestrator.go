// Package orchestrator runs the three-agent pipeline as a small state
// machine with per-stage timeouts and fallback edges. The pipeline never
// fails closed: whatever breaks, the caller gets a well-formed response
// with confidence 0.0 and a follow-up question in the worst case.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	intentpkg "github.com/beedev/sparky/internal/intent"
	"github.com/beedev/sparky/pkg/models"
)

// IntentProcessor is Agent 1.
type IntentProcessor interface {
	Process(ctx context.Context, query string, userCtx models.UserContext) (*models.ProcessedIntent, error)
}

// Recommender is Agent 2.
type Recommender interface {
	Recommend(ctx context.Context, intent *models.ProcessedIntent) (*models.ScoredRecommendations, error)
}

// ResponseComposer is Agent 3.
type ResponseComposer interface {
	Compose(recs *models.ScoredRecommendations, intent *models.ProcessedIntent) *models.Response
}

// Observer receives stage timings; the metrics package implements it.
type Observer interface {
	ObserveStage(state models.PipelineState, d time.Duration, failed bool)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(models.PipelineState, time.Duration, bool) {}

// Result is the full pipeline output for one query.
type Result struct {
	Response *models.Response
	Intent   *models.ProcessedIntent
	Recs     *models.ScoredRecommendations
	Trace    models.Trace
}

// Orchestrator sequences the agents.
type Orchestrator struct {
	intent       IntentProcessor
	engine       Recommender
	composer     ResponseComposer
	observer     Observer
	stageTimeout time.Duration
	log          zerolog.Logger
}

// New wires the orchestrator. stageTimeout bounds each agent individually;
// zero means the 30 s default.
func New(ip IntentProcessor, rec Recommender, comp ResponseComposer, stageTimeout time.Duration, log zerolog.Logger) *Orchestrator {
	if stageTimeout <= 0 {
		stageTimeout = 30 * time.Second
	}
	return &Orchestrator{
		intent:       ip,
		engine:       rec,
		composer:     comp,
		observer:     nopObserver{},
		stageTimeout: stageTimeout,
		log:          log.With().Str("component", "orchestrator").Logger(),
	}
}

// WithObserver attaches a stage observer.
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	o.observer = obs
	return o
}

// Handle runs the pipeline for one query.
func (o *Orchestrator) Handle(ctx context.Context, query string, userCtx models.UserContext) *Result {
	start := time.Now()
	result := &Result{
		Trace: models.Trace{
			TraceID:   uuid.NewString(),
			SessionID: userCtx.SessionID,
			Query:     query,
			CreatedAt: start,
		},
	}
	log := o.log.With().Str("trace_id", result.Trace.TraceID).Logger()

	// Stage 1: intent.
	intent, err := o.runIntent(ctx, result, query, userCtx)
	if err != nil {
		log.Error().Err(err).Msg("intent stage failed, no fallback possible")
		o.errorResponse(result, err)
		result.Trace.TotalMs = time.Since(start).Milliseconds()
		return result
	}
	result.Intent = intent

	if ctx.Err() != nil {
		o.errorResponse(result, ctx.Err())
		result.Trace.TotalMs = time.Since(start).Milliseconds()
		return result
	}

	// Stage 2: recommendations.
	recs := o.runRecommend(ctx, result, intent)
	result.Recs = recs

	if ctx.Err() != nil {
		o.errorResponse(result, ctx.Err())
		result.Trace.TotalMs = time.Since(start).Milliseconds()
		return result
	}

	// Stage 3: composition. The composer is pure and cannot time out.
	composeStart := time.Now()
	result.Response = o.composer.Compose(recs, intent)
	o.record(result, models.StateComposingResponse, time.Since(composeStart), false, "")

	result.Trace.TotalMs = time.Since(start).Milliseconds()
	result.Trace.Confidence = result.Response.OverallConfidence
	result.Trace.Packages = len(result.Response.Packages)

	log.Info().
		Int64("total_ms", result.Trace.TotalMs).
		Int("packages", result.Trace.Packages).
		Float64("confidence", result.Trace.Confidence).
		Msg("pipeline complete")
	return result
}

// runIntent executes stage 1 with its timeout. A timeout or processor
// error other than an empty query degrades to a minimal fallback intent
// rather than failing the pipeline.
func (o *Orchestrator) runIntent(ctx context.Context, result *Result, query string, userCtx models.UserContext) (*models.ProcessedIntent, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	start := time.Now()
	intent, err := o.intent.Process(stageCtx, query, userCtx)
	d := time.Since(start)

	if err == nil {
		o.record(result, models.StateProcessingIntent, d, false, "")
		return intent, nil
	}
	o.record(result, models.StateProcessingIntent, d, false, err.Error())

	// A blank query has no meaningful fallback.
	if errors.Is(err, intentpkg.ErrEmptyQuery) {
		return nil, err
	}

	// INTENT_FALLBACK: minimal intent, capped confidence.
	fallbackStart := time.Now()
	fallback := &models.ProcessedIntent{
		OriginalQuery:    query,
		TranslatedQuery:  query,
		DetectedLanguage: "en",
		Mode:             models.ModeHybrid,
		Confidence:       0.2,
		Errors:           []string{err.Error()},
		UserContext:      userCtx,
	}
	o.record(result, models.StateIntentFallback, time.Since(fallbackStart), true, "")
	return fallback, nil
}

// runRecommend executes stage 2 with its timeout, falling back to an empty
// follow-up result on error.
func (o *Orchestrator) runRecommend(ctx context.Context, result *Result, intent *models.ProcessedIntent) *models.ScoredRecommendations {
	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	start := time.Now()
	recs, err := o.engine.Recommend(stageCtx, intent)
	d := time.Since(start)

	if err == nil && recs != nil {
		o.record(result, models.StateGeneratingRecs, d, false, "")
		return recs
	}
	msg := "nil recommendations"
	if err != nil {
		msg = err.Error()
	}
	o.record(result, models.StateGeneratingRecs, d, false, msg)

	// GRAPH_FALLBACK: empty result that still composes cleanly.
	fallbackStart := time.Now()
	fallback := &models.ScoredRecommendations{
		Metadata:          models.SearchMetadata{Strategy: models.StrategySalesOnly},
		NeedsFollowUp:     true,
		FollowUpQuestions: []string{"Could you rephrase what you are looking for?"},
		Errors:            []string{msg},
	}
	o.record(result, models.StateGraphFallback, time.Since(fallbackStart), true, "")
	return fallback
}

// errorResponse terminates the pipeline with the minimal valid response.
func (o *Orchestrator) errorResponse(result *Result, err error) {
	start := time.Now()
	result.Response = &models.Response{
		Title:             "Unable to process your request",
		Summary:           "Something went wrong while processing your query. Please try again.",
		ExplanationLevel:  models.ExplanationBalanced,
		ResponseLanguage:  "en",
		OverallConfidence: 0,
		NeedsFollowUp:     true,
		FollowUpQuestions: []string{"Could you rephrase your question?"},
	}
	o.record(result, models.StateErrorResponse, time.Since(start), true, err.Error())
}

func (o *Orchestrator) record(result *Result, state models.PipelineState, d time.Duration, fallback bool, errMsg string) {
	result.Trace.Stages = append(result.Trace.Stages, models.StageTiming{
		State:      state,
		DurationMs: d.Milliseconds(),
		Fallback:   fallback,
		Error:      errMsg,
	})
	o.observer.ObserveStage(state, d, errMsg != "" || fallback)
}
