package hotstuff

import (
	"fmt"
)

// ViewID numbers the views of a committee. It starts at zero with the
// genesis view and only ever increases.
type ViewID uint64

// Next returns the following view.
func (v ViewID) Next() ViewID {
	return v + 1
}

func (v ViewID) String() string {
	return fmt.Sprintf("view %d", uint64(v))
}

// View is the view a replica is currently in.
type View struct {
	ID       ViewID
	IsLeader bool
}

// ReplicaID is the address of a committee member.
type ReplicaID string
