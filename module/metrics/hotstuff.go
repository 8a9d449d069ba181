package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tari-project/tari-core/module"
)

// HotStuffCollector reports the progress of a committee replica.
type HotStuffCollector struct {
	curView       prometheus.Gauge
	transitions   *prometheus.CounterVec
	qcsCreated    *prometheus.CounterVec
	timeouts      *prometheus.CounterVec
	newViewsSent  prometheus.Counter
	committed     prometheus.Gauge
	phaseDuration *prometheus.HistogramVec
}

var _ module.HotStuffMetrics = (*HotStuffCollector)(nil)

func NewHotStuffCollector(registerer prometheus.Registerer) *HotStuffCollector {
	hc := &HotStuffCollector{
		curView: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemHotStuff,
			Name:      "cur_view",
			Help:      "the current view of the replica",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemHotStuff,
			Name:      "state_transitions_total",
			Help:      "the number of state machine transitions",
		}, []string{LabelFrom, LabelTo}),
		qcsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemHotStuff,
			Name:      "qcs_created_total",
			Help:      "the number of quorum certificates built as leader",
		}, []string{LabelPhase}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemHotStuff,
			Name:      "timeouts_total",
			Help:      "the number of phase timeouts",
		}, []string{LabelState}),
		newViewsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemHotStuff,
			Name:      "new_views_sent_total",
			Help:      "the number of NEW_VIEW messages sent",
		}),
		committed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemHotStuff,
			Name:      "committed_height",
			Help:      "the height of the last committed tree node",
		}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemHotStuff,
			Name:      "phase_duration_seconds",
			Help:      "time spent in each phase",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{LabelPhase}),
	}
	registerer.MustRegister(hc.curView, hc.transitions, hc.qcsCreated, hc.timeouts,
		hc.newViewsSent, hc.committed, hc.phaseDuration)
	return hc
}

func (hc *HotStuffCollector) SetCurView(view uint64) {
	hc.curView.Set(float64(view))
}

func (hc *HotStuffCollector) StateTransition(from, to string) {
	hc.transitions.WithLabelValues(from, to).Inc()
}

func (hc *HotStuffCollector) QCCreated(phase string) {
	hc.qcsCreated.WithLabelValues(phase).Inc()
}

func (hc *HotStuffCollector) TimeoutOccurred(state string) {
	hc.timeouts.WithLabelValues(state).Inc()
}

func (hc *HotStuffCollector) NewViewSent() {
	hc.newViewsSent.Inc()
}

func (hc *HotStuffCollector) NodeCommitted(height uint64) {
	hc.committed.Set(float64(height))
}

func (hc *HotStuffCollector) PhaseDuration(phase string, duration time.Duration) {
	hc.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}
