package metrics

const (
	LabelResource    = "resource"
	LabelKind        = "kind"
	LabelReason      = "reason"
	LabelResult      = "result"
	LabelPhase       = "phase"
	LabelState       = "state"
	LabelFrom        = "from"
	LabelTo          = "to"
	LabelMessage     = "message"
	LabelPeer        = "peer"
	LabelSyncOutcome = "outcome"
)

const (
	ResourceUndefined       = "undefined"
	ResourceHeader          = "header"
	ResourceAccumulatedData = "accumulated_data"
)

const (
	ValidationKindHeader       = "header"
	ValidationKindBlock        = "block"
	ValidationKindBody         = "body"
	ValidationKindChainBalance = "chain_balance"
)

const (
	BlockAddedOk        = "added"
	BlockAddedOrphaned  = "orphaned"
	BlockAddedDuplicate = "duplicate"
	BlockAddedReorg     = "reorg"
	BlockAddedRejected  = "rejected"
)
