package metrics

// Prometheus metric namespaces
const (
	namespaceNode = "tari"
)

// Prometheus metric subsystems
const (
	subsystemCache      = "cache"
	subsystemValidation = "validation"
	subsystemChain      = "chain"
	subsystemHotStuff   = "hotstuff"
	subsystemSync       = "horizon_sync"
	subsystemNetwork    = "committee_network"
)
