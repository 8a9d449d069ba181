package chainsync

import (
	"fmt"

	"github.com/google/uuid"
)

// Status is the stage of a horizon sync.
type Status uint8

const (
	StatusStarting Status = iota
	StatusSyncing
	StatusFinalizing
	StatusComplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusSyncing:
		return "syncing"
	case StatusFinalizing:
		return "finalizing"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// SyncEvent reports the progress of a sync. All events of one Sync call
// share a Session. Err is set for StatusFailed.
type SyncEvent struct {
	Session uuid.UUID
	Status  Status
	Peer    string
	Height  uint64
	Target  uint64
	Err     error
}

func (e SyncEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s from %s: %v", e.Status, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s from %s (%d/%d)", e.Status, e.Peer, e.Height, e.Target)
}
