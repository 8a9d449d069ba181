package module

import (
	"time"
)

// CacheMetrics reports hit rates and sizes of the storage caches.
type CacheMetrics interface {
	// CacheEntries reports the current number of entries of a cache.
	CacheEntries(resource string, entries uint)
	CacheHit(resource string)
	CacheMiss(resource string)
}

// ValidationMetrics reports the outcome of validation pipelines. The kind
// names the pipeline (header, block, body, chain_balance).
type ValidationMetrics interface {
	ValidationSucceeded(kind string, duration time.Duration)
	// ValidationFailed counts a rejection with the name of the failing rule.
	ValidationFailed(kind string, reason string)
	// ValidationTimedOut counts pipelines aborted by the caller deadline.
	ValidationTimedOut(kind string)
}

// ChainMetrics reports the state of the base-layer chain store.
type ChainMetrics interface {
	ChainTip(height uint64)
	// BlockAdded counts add-block outcomes (added, orphaned, duplicate, reorg).
	BlockAdded(result string)
	Reorg(depth uint64)
	OrphanPoolSize(size uint)
}

// HotStuffMetrics reports the progress of a committee replica.
type HotStuffMetrics interface {
	SetCurView(view uint64)
	StateTransition(from, to string)
	QCCreated(phase string)
	TimeoutOccurred(state string)
	NewViewSent()
	NodeCommitted(height uint64)
	PhaseDuration(phase string, duration time.Duration)
}

// SyncMetrics reports horizon sync progress.
type SyncMetrics interface {
	SyncProgress(current, target uint64)
	SyncFinished(success bool)
}

// NetworkMetrics reports committee message traffic.
type NetworkMetrics interface {
	MessageSent(messageType string)
	MessageReceived(messageType string)
	MessageDropped(messageType string)
	InboxLength(peer string, length int)
}
