package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tari-project/tari-core/module"
)

// ValidationCollector reports validation pipeline outcomes.
type ValidationCollector struct {
	duration *prometheus.HistogramVec
	failed   *prometheus.CounterVec
	timedOut *prometheus.CounterVec
}

var _ module.ValidationMetrics = (*ValidationCollector)(nil)

func NewValidationCollector(registerer prometheus.Registerer) *ValidationCollector {
	vc := &ValidationCollector{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemValidation,
			Name:      "success_duration_seconds",
			Help:      "duration of successful validation pipelines",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{LabelKind}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemValidation,
			Name:      "failures_total",
			Help:      "the number of rejected items by failing rule",
		}, []string{LabelKind, LabelReason}),
		timedOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemValidation,
			Name:      "timeouts_total",
			Help:      "the number of validation pipelines aborted by a deadline",
		}, []string{LabelKind}),
	}
	registerer.MustRegister(vc.duration, vc.failed, vc.timedOut)
	return vc
}

func (vc *ValidationCollector) ValidationSucceeded(kind string, duration time.Duration) {
	vc.duration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (vc *ValidationCollector) ValidationFailed(kind string, reason string) {
	vc.failed.WithLabelValues(kind, reason).Inc()
}

func (vc *ValidationCollector) ValidationTimedOut(kind string) {
	vc.timedOut.WithLabelValues(kind).Inc()
}
