package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tari-project/tari-core/module"
)

// SyncCollector reports horizon sync progress.
type SyncCollector struct {
	current  prometheus.Gauge
	target   prometheus.Gauge
	finished *prometheus.CounterVec
}

var _ module.SyncMetrics = (*SyncCollector)(nil)

func NewSyncCollector(registerer prometheus.Registerer) *SyncCollector {
	sc := &SyncCollector{
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemSync,
			Name:      "current_height",
			Help:      "the height synced so far",
		}),
		target: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemSync,
			Name:      "target_height",
			Help:      "the height the sync is heading for",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemSync,
			Name:      "finished_total",
			Help:      "the number of finished sync attempts by outcome",
		}, []string{LabelSyncOutcome}),
	}
	registerer.MustRegister(sc.current, sc.target, sc.finished)
	return sc
}

func (sc *SyncCollector) SyncProgress(current, target uint64) {
	sc.current.Set(float64(current))
	sc.target.Set(float64(target))
}

func (sc *SyncCollector) SyncFinished(success bool) {
	outcome := "failed"
	if success {
		outcome = "completed"
	}
	sc.finished.WithLabelValues(outcome).Inc()
}
