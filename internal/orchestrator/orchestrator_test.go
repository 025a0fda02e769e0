package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	intentpkg "github.com/beedev/sparky/internal/intent"
	"github.com/beedev/sparky/pkg/models"
)

type fakeIntent struct {
	intent *models.ProcessedIntent
	err    error
	delay  time.Duration
}

func (f *fakeIntent) Process(ctx context.Context, query string, _ models.UserContext) (*models.ProcessedIntent, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.intent, f.err
}

type fakeEngine struct {
	recs *models.ScoredRecommendations
	err  error
}

func (f *fakeEngine) Recommend(context.Context, *models.ProcessedIntent) (*models.ScoredRecommendations, error) {
	return f.recs, f.err
}

type fakeComposer struct{}

func (fakeComposer) Compose(recs *models.ScoredRecommendations, intent *models.ProcessedIntent) *models.Response {
	return &models.Response{
		Title:             "ok",
		Packages:          recs.Packages,
		OverallConfidence: intent.Confidence,
		NeedsFollowUp:     recs.NeedsFollowUp,
		FollowUpQuestions: recs.FollowUpQuestions,
		ResponseLanguage:  intent.DetectedLanguage,
	}
}

type countingObserver struct {
	stages []models.PipelineState
}

func (c *countingObserver) ObserveStage(state models.PipelineState, _ time.Duration, _ bool) {
	c.stages = append(c.stages, state)
}

func happyIntent() *models.ProcessedIntent {
	return &models.ProcessedIntent{
		OriginalQuery:    "mig welder",
		TranslatedQuery:  "mig welder",
		DetectedLanguage: "en",
		Mode:             models.ModeHybrid,
		Confidence:       0.8,
	}
}

func TestHandle_HappyPath(t *testing.T) {
	obs := &countingObserver{}
	o := New(
		&fakeIntent{intent: happyIntent()},
		&fakeEngine{recs: &models.ScoredRecommendations{Packages: []models.WeldingPackage{{PackageID: "pkg-a", Score: 0.8}}}},
		fakeComposer{},
		time.Second,
		zerolog.Nop(),
	).WithObserver(obs)

	result := o.Handle(context.Background(), "mig welder", models.UserContext{SessionID: "s1"})

	if result.Response == nil || result.Response.Title != "ok" {
		t.Fatalf("Response = %+v", result.Response)
	}
	if result.Trace.TraceID == "" || result.Trace.SessionID != "s1" {
		t.Errorf("Trace = %+v, want trace id and session id", result.Trace)
	}
	want := []models.PipelineState{models.StateProcessingIntent, models.StateGeneratingRecs, models.StateComposingResponse}
	if len(obs.stages) != len(want) {
		t.Fatalf("stages = %v, want %v", obs.stages, want)
	}
	for i := range want {
		if obs.stages[i] != want[i] {
			t.Errorf("stage[%d] = %v, want %v", i, obs.stages[i], want[i])
		}
	}
	if result.Trace.Packages != 1 {
		t.Errorf("Trace.Packages = %d, want 1", result.Trace.Packages)
	}
}

func TestHandle_IntentFailureFallsBack(t *testing.T) {
	o := New(
		&fakeIntent{err: errors.New("llm exploded")},
		&fakeEngine{recs: &models.ScoredRecommendations{}},
		fakeComposer{},
		time.Second,
		zerolog.Nop(),
	)

	result := o.Handle(context.Background(), "mig welder", models.UserContext{})

	if result.Response == nil {
		t.Fatal("Response = nil, pipeline must not fail closed")
	}
	if result.Intent == nil || result.Intent.Confidence != 0.2 {
		t.Errorf("Intent = %+v, want fallback intent at 0.2", result.Intent)
	}
	fallbackSeen := false
	for _, s := range result.Trace.Stages {
		if s.State == models.StateIntentFallback && s.Fallback {
			fallbackSeen = true
		}
	}
	if !fallbackSeen {
		t.Errorf("Trace.Stages = %+v, want INTENT_FALLBACK", result.Trace.Stages)
	}
}

func TestHandle_EmptyQueryErrorResponse(t *testing.T) {
	o := New(
		&fakeIntent{err: intentpkg.ErrEmptyQuery},
		&fakeEngine{},
		fakeComposer{},
		time.Second,
		zerolog.Nop(),
	)

	result := o.Handle(context.Background(), "", models.UserContext{})

	if result.Response == nil {
		t.Fatal("Response = nil")
	}
	if result.Response.OverallConfidence != 0 || !result.Response.NeedsFollowUp {
		t.Errorf("Response = %+v, want zero-confidence follow-up", result.Response)
	}
	last := result.Trace.Stages[len(result.Trace.Stages)-1]
	if last.State != models.StateErrorResponse {
		t.Errorf("last stage = %v, want ERROR_RESPONSE", last.State)
	}
}

func TestHandle_EngineFailureFallsBack(t *testing.T) {
	o := New(
		&fakeIntent{intent: happyIntent()},
		&fakeEngine{err: errors.New("graph down")},
		fakeComposer{},
		time.Second,
		zerolog.Nop(),
	)

	result := o.Handle(context.Background(), "mig welder", models.UserContext{})

	if result.Response == nil {
		t.Fatal("Response = nil, pipeline must not fail closed")
	}
	if !result.Response.NeedsFollowUp {
		t.Error("graph fallback must set NeedsFollowUp")
	}
	fallbackSeen := false
	for _, s := range result.Trace.Stages {
		if s.State == models.StateGraphFallback {
			fallbackSeen = true
		}
	}
	if !fallbackSeen {
		t.Errorf("Trace.Stages = %+v, want GRAPH_FALLBACK", result.Trace.Stages)
	}
}

func TestHandle_StageTimeoutFallsBack(t *testing.T) {
	o := New(
		&fakeIntent{intent: happyIntent(), delay: 200 * time.Millisecond},
		&fakeEngine{recs: &models.ScoredRecommendations{}},
		fakeComposer{},
		20*time.Millisecond,
		zerolog.Nop(),
	)

	result := o.Handle(context.Background(), "mig welder", models.UserContext{})

	if result.Response == nil {
		t.Fatal("Response = nil after stage timeout")
	}
	if result.Intent == nil || len(result.Intent.Errors) == 0 {
		t.Errorf("Intent = %+v, want fallback intent carrying the timeout error", result.Intent)
	}
}

func TestHandle_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(
		&fakeIntent{intent: happyIntent()},
		&fakeEngine{recs: &models.ScoredRecommendations{}},
		fakeComposer{},
		time.Second,
		zerolog.Nop(),
	)

	result := o.Handle(ctx, "mig welder", models.UserContext{})
	if result.Response == nil {
		t.Fatal("Response = nil for cancelled context, must still respond")
	}
}
