package metrics

import (
	"time"

	"github.com/tari-project/tari-core/module"
)

// NoopCollector implements every metrics interface and records nothing.
type NoopCollector struct{}

var (
	_ module.CacheMetrics      = (*NoopCollector)(nil)
	_ module.ValidationMetrics = (*NoopCollector)(nil)
	_ module.ChainMetrics      = (*NoopCollector)(nil)
	_ module.HotStuffMetrics   = (*NoopCollector)(nil)
	_ module.SyncMetrics       = (*NoopCollector)(nil)
	_ module.NetworkMetrics    = (*NoopCollector)(nil)
)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) CacheEntries(resource string, entries uint)              {}
func (nc *NoopCollector) CacheHit(resource string)                                {}
func (nc *NoopCollector) CacheMiss(resource string)                               {}
func (nc *NoopCollector) ValidationSucceeded(kind string, duration time.Duration) {}
func (nc *NoopCollector) ValidationFailed(kind string, reason string)             {}
func (nc *NoopCollector) ValidationTimedOut(kind string)                          {}
func (nc *NoopCollector) ChainTip(height uint64)                                  {}
func (nc *NoopCollector) BlockAdded(result string)                                {}
func (nc *NoopCollector) Reorg(depth uint64)                                      {}
func (nc *NoopCollector) OrphanPoolSize(size uint)                                {}
func (nc *NoopCollector) SetCurView(view uint64)                                  {}
func (nc *NoopCollector) StateTransition(from, to string)                         {}
func (nc *NoopCollector) QCCreated(phase string)                                  {}
func (nc *NoopCollector) TimeoutOccurred(state string)                            {}
func (nc *NoopCollector) NewViewSent()                                            {}
func (nc *NoopCollector) NodeCommitted(height uint64)                             {}
func (nc *NoopCollector) PhaseDuration(phase string, duration time.Duration)      {}
func (nc *NoopCollector) SyncProgress(current, target uint64)                     {}
func (nc *NoopCollector) SyncFinished(success bool)                               {}
func (nc *NoopCollector) MessageSent(messageType string)                          {}
func (nc *NoopCollector) MessageReceived(messageType string)                      {}
func (nc *NoopCollector) MessageDropped(messageType string)                       {}
func (nc *NoopCollector) InboxLength(peer string, length int)                     {}
