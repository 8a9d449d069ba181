package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tari-project/tari-core/module"
)

// NetworkCollector reports committee message traffic.
type NetworkCollector struct {
	sent     *prometheus.CounterVec
	received *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	inbox    *prometheus.GaugeVec
}

var _ module.NetworkMetrics = (*NetworkCollector)(nil)

func NewNetworkCollector(registerer prometheus.Registerer) *NetworkCollector {
	nc := &NetworkCollector{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemNetwork,
			Name:      "messages_sent_total",
			Help:      "the number of messages sent",
		}, []string{LabelMessage}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemNetwork,
			Name:      "messages_received_total",
			Help:      "the number of messages received",
		}, []string{LabelMessage}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemNetwork,
			Name:      "messages_dropped_total",
			Help:      "the number of messages dropped because an inbox was full",
		}, []string{LabelMessage}),
		inbox: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemNetwork,
			Name:      "inbox_length",
			Help:      "the number of queued messages per peer",
		}, []string{LabelPeer}),
	}
	registerer.MustRegister(nc.sent, nc.received, nc.dropped, nc.inbox)
	return nc
}

func (nc *NetworkCollector) MessageSent(messageType string) {
	nc.sent.WithLabelValues(messageType).Inc()
}

func (nc *NetworkCollector) MessageReceived(messageType string) {
	nc.received.WithLabelValues(messageType).Inc()
}

func (nc *NetworkCollector) MessageDropped(messageType string) {
	nc.dropped.WithLabelValues(messageType).Inc()
}

func (nc *NetworkCollector) InboxLength(peer string, length int) {
	nc.inbox.WithLabelValues(peer).Set(float64(length))
}
