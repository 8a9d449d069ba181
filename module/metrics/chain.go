package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tari-project/tari-core/module"
)

// ChainCollector reports the state of the base-layer chain.
type ChainCollector struct {
	tipHeight  prometheus.Gauge
	blockAdded *prometheus.CounterVec
	reorgDepth prometheus.Histogram
	orphans    prometheus.Gauge
}

var _ module.ChainMetrics = (*ChainCollector)(nil)

func NewChainCollector(registerer prometheus.Registerer) *ChainCollector {
	cc := &ChainCollector{
		tipHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemChain,
			Name:      "tip_height",
			Help:      "the height of the chain tip",
		}),
		blockAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemChain,
			Name:      "blocks_added_total",
			Help:      "the number of add-block calls by outcome",
		}, []string{LabelResult}),
		reorgDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemChain,
			Name:      "reorg_depth",
			Help:      "the number of blocks removed by a reorg",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 100},
		}),
		orphans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemChain,
			Name:      "orphan_pool_size",
			Help:      "the number of blocks in the orphan pool",
		}),
	}
	registerer.MustRegister(cc.tipHeight, cc.blockAdded, cc.reorgDepth, cc.orphans)
	return cc
}

func (cc *ChainCollector) ChainTip(height uint64) {
	cc.tipHeight.Set(float64(height))
}

func (cc *ChainCollector) BlockAdded(result string) {
	cc.blockAdded.WithLabelValues(result).Inc()
}

func (cc *ChainCollector) Reorg(depth uint64) {
	cc.reorgDepth.Observe(float64(depth))
}

func (cc *ChainCollector) OrphanPoolSize(size uint) {
	cc.orphans.Set(float64(size))
}
