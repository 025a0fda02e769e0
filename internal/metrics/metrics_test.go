package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/beedev/sparky/pkg/models"
)

func TestPipeline_Snapshot(t *testing.T) {
	p := NewPipeline(prometheus.NewRegistry())

	for i := 1; i <= 10; i++ {
		p.ObserveStage(models.StateProcessingIntent, time.Duration(i)*10*time.Millisecond, false)
	}
	p.ObserveStage(models.StateGeneratingRecs, 50*time.Millisecond, true)

	snap := p.Snapshot()

	intent := snap[string(models.StateProcessingIntent)]
	if intent.Count != 10 || intent.WindowLen != 10 {
		t.Errorf("intent stats = %+v, want count/window 10", intent)
	}
	if intent.Failures != 0 {
		t.Errorf("intent failures = %d, want 0", intent.Failures)
	}
	// Samples are 10..100 ms; the median sits in the middle of the window.
	if intent.P50Ms < 40 || intent.P50Ms > 70 {
		t.Errorf("P50 = %v, want around 50-60ms", intent.P50Ms)
	}
	if intent.P95Ms < intent.P50Ms {
		t.Errorf("P95 %v < P50 %v", intent.P95Ms, intent.P50Ms)
	}

	recs := snap[string(models.StateGeneratingRecs)]
	if recs.Count != 1 || recs.Failures != 1 {
		t.Errorf("recs stats = %+v, want one failed sample", recs)
	}
}

func TestPipeline_WindowWraps(t *testing.T) {
	p := NewPipeline(prometheus.NewRegistry())

	for i := 0; i < windowSize+50; i++ {
		p.ObserveStage(models.StateComposingResponse, time.Millisecond, false)
	}
	snap := p.Snapshot()
	stats := snap[string(models.StateComposingResponse)]
	if stats.WindowLen != windowSize {
		t.Errorf("WindowLen = %d, want %d after wrap", stats.WindowLen, windowSize)
	}
	if stats.Count != windowSize+50 {
		t.Errorf("Count = %d, want %d (total, not windowed)", stats.Count, windowSize+50)
	}
}
