package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// PipelineMetrics exports answer-pipeline telemetry. It satisfies the
// use case Observer interface and the resilience state listener.
type PipelineMetrics struct {
	service string

	modeTotal      *prometheus.CounterVec
	cacheTotal     *prometheus.CounterVec
	degradedTotal  *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	breakerState   *prometheus.GaugeVec
	breakerChanges *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registry *prometheus.Registry) *PipelineMetrics {
	modeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetiq",
			Subsystem: "pipeline",
			Name:      "mode_decisions_total",
			Help:      "Query mode decisions by mode and decision source.",
		},
		[]string{"service", "mode", "source"},
	)
	cacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetiq",
			Subsystem: "pipeline",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetiq",
			Subsystem: "pipeline",
			Name:      "degraded_stages_total",
			Help:      "Pipeline stages that degraded while the query still answered.",
		},
		[]string{"service", "stage"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assetiq",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "stage"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "assetiq",
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	breakerChanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetiq",
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker state transitions per operation.",
		},
		[]string{"service", "operation", "to"},
	)

	registry.MustRegister(
		modeTotal,
		cacheTotal,
		degradedTotal,
		stageDuration,
		breakerState,
		breakerChanges,
	)

	m := &PipelineMetrics{
		service:        service,
		modeTotal:      modeTotal,
		cacheTotal:     cacheTotal,
		degradedTotal:  degradedTotal,
		stageDuration:  stageDuration,
		breakerState:   breakerState,
		breakerChanges: breakerChanges,
	}
	return m
}

func (m *PipelineMetrics) ModeDecided(mode domain.Mode, heuristic bool) {
	source := "classifier"
	if heuristic {
		source = "heuristic"
	}
	m.modeTotal.WithLabelValues(m.service, string(mode), source).Inc()
}

func (m *PipelineMetrics) CacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheTotal.WithLabelValues(m.service, outcome).Inc()
}

func (m *PipelineMetrics) Degraded(stage string) {
	m.degradedTotal.WithLabelValues(m.service, stage).Inc()
}

func (m *PipelineMetrics) StageDuration(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(m.service, stage).Observe(d.Seconds())
}

// BreakerStateChanged matches resilience.StateListener.
func (m *PipelineMetrics) BreakerStateChanged(operation string, from, to gobreaker.State) {
	_ = from
	m.breakerState.WithLabelValues(m.service, operation).Set(breakerStateValue(to))
	m.breakerChanges.WithLabelValues(m.service, operation, to.String()).Inc()
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
