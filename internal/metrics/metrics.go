package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision endpoint.
type Metrics struct {
	// Decision outcomes by level and decision label
	DecisionOutcome *prometheus.CounterVec

	// Distribution of clamped scores
	Score prometheus.Histogram

	// Engine evaluation latency
	EvaluateLatency prometheus.Histogram

	// Requests rejected before reaching the engine
	ValidationFailures prometheus.Counter
}

// New creates the decision metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_decision_outcomes_total",
			Help: "Total decisions by risk level and decision label",
		}, []string{"level", "decision"}),

		Score: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_decision_score",
			Help:    "Clamped risk scores returned by the engine",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_decision_evaluate_duration_seconds",
			Help:    "Duration of a single engine evaluation",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),

		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_decision_validation_failures_total",
			Help: "Requests rejected by input validation",
		}),
	}
}

// ObserveDecision records a decision outcome and its score.
func (m *Metrics) ObserveDecision(level, decision string, score int) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(level, decision).Inc()
		m.Score.Observe(float64(score))
	}
}

// ObserveEvaluateLatency records how long the engine took.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementValidationFailure records a rejected request.
func (m *Metrics) IncrementValidationFailure() {
	if m != nil {
		m.ValidationFailures.Inc()
	}
}
