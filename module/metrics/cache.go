package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tari-project/tari-core/module"
)

// CacheCollector reports storage cache metrics.
type CacheCollector struct {
	entries *prometheus.GaugeVec
	hits    *prometheus.CounterVec
	misses  *prometheus.CounterVec
}

var _ module.CacheMetrics = (*CacheCollector)(nil)

func NewCacheCollector(registerer prometheus.Registerer) *CacheCollector {
	cc := &CacheCollector{
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemCache,
			Name:      "entries_total",
			Help:      "the number of entries in the storage cache",
		}, []string{LabelResource}),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemCache,
			Name:      "hits_total",
			Help:      "the number of hits for the storage cache",
		}, []string{LabelResource}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemCache,
			Name:      "misses_total",
			Help:      "the number of misses for the storage cache",
		}, []string{LabelResource}),
	}
	registerer.MustRegister(cc.entries, cc.hits, cc.misses)
	return cc
}

// CacheEntries records the size of the cache.
func (cc *CacheCollector) CacheEntries(resource string, entries uint) {
	cc.entries.WithLabelValues(resource).Set(float64(entries))
}

// CacheHit records a hit in the cache.
func (cc *CacheCollector) CacheHit(resource string) {
	cc.hits.WithLabelValues(resource).Inc()
}

// CacheMiss records a miss in the cache.
func (cc *CacheCollector) CacheMiss(resource string) {
	cc.misses.WithLabelValues(resource).Inc()
}
