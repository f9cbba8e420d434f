package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/michaelbrown/codetutor/internal/executor"
)

// Metrics holds the Prometheus collectors for code execution. It implements
// executor.Recorder.
type Metrics struct {
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ActiveExecutions  prometheus.Gauge
	RateLimitHits     *prometheus.CounterVec
}

var _ executor.Recorder = (*Metrics)(nil)

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer to
// expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ExecutionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codetutor_executions_total",
				Help: "Total number of code executions",
			},
			[]string{"language", "outcome"},
		),
		ExecutionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codetutor_execution_duration_ms",
				Help:    "Execution duration in milliseconds",
				Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"language"},
		),
		ActiveExecutions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "codetutor_active_executions",
				Help: "Number of executions currently running",
			},
		),
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codetutor_rate_limit_hits_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"reason"},
		),
	}
}

// unsupportedLabel replaces the caller-supplied language of unsupported runs
// so the label set stays bounded by the registry.
const unsupportedLabel = "unsupported"

func (m *Metrics) ObserveExecution(language string, outcome executor.Outcome, elapsed time.Duration) {
	if outcome == executor.OutcomeUnsupported {
		m.ExecutionsTotal.WithLabelValues(unsupportedLabel, string(outcome)).Inc()
		return
	}
	m.ExecutionsTotal.WithLabelValues(language, string(outcome)).Inc()
	m.ExecutionDuration.WithLabelValues(language).Observe(float64(elapsed.Milliseconds()))
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited(reason string) {
	m.RateLimitHits.WithLabelValues(reason).Inc()
}
