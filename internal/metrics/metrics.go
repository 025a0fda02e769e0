// Package metrics tracks per-stage pipeline latency two ways: a rolling
// in-memory window serving the JSON metrics endpoint, and Prometheus
// collectors for scraping.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/beedev/sparky/pkg/models"
)

// windowSize bounds the rolling sample buffer per stage.
const windowSize = 100

// StageStats is the JSON snapshot for one pipeline stage.
type StageStats struct {
	Count     int64   `json:"count"`
	Failures  int64   `json:"failures"`
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	WindowLen int     `json:"window_len"`
}

type stageWindow struct {
	samples  []float64 // milliseconds, ring buffer
	next     int
	filled   bool
	count    int64
	failures int64
}

// Pipeline implements orchestrator.Observer over both sinks.
type Pipeline struct {
	mu     sync.Mutex
	stages map[models.PipelineState]*stageWindow

	durations *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	requests  prometheus.Counter
}

// NewPipeline creates the recorder and registers its collectors.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	return &Pipeline{
		stages: make(map[models.PipelineState]*stageWindow),
		durations: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sparky",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparky",
			Name:      "stage_failures_total",
			Help:      "Pipeline stage failures and fallbacks.",
		}, []string{"stage"}),
		requests: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "sparky",
			Name:      "requests_total",
			Help:      "Pipeline runs handled.",
		}),
	}
}

// ObserveStage records one stage execution.
func (p *Pipeline) ObserveStage(state models.PipelineState, d time.Duration, failed bool) {
	stage := string(state)
	p.durations.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		p.failures.WithLabelValues(stage).Inc()
	}
	if state == models.StateProcessingIntent {
		p.requests.Inc()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.stages[state]
	if !ok {
		w = &stageWindow{samples: make([]float64, windowSize)}
		p.stages[state] = w
	}
	w.samples[w.next] = float64(d.Microseconds()) / 1000.0
	w.next = (w.next + 1) % windowSize
	if w.next == 0 {
		w.filled = true
	}
	w.count++
	if failed {
		w.failures++
	}
}

// Snapshot returns stats per stage over the current window.
func (p *Pipeline) Snapshot() map[string]StageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]StageStats, len(p.stages))
	for state, w := range p.stages {
		n := w.next
		if w.filled {
			n = windowSize
		}
		window := make([]float64, n)
		copy(window, w.samples[:n])
		sort.Float64s(window)

		stats := StageStats{
			Count:     w.count,
			Failures:  w.failures,
			WindowLen: n,
		}
		if n > 0 {
			total := 0.0
			for _, v := range window {
				total += v
			}
			stats.AvgMs = total / float64(n)
			stats.P50Ms = percentile(window, 0.5)
			stats.P95Ms = percentile(window, 0.95)
		}
		out[string(state)] = stats
	}
	return out
}

// percentile reads the q-quantile from a sorted slice using the
// nearest-rank method.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
