package hotstuff

import (
	"fmt"

	"github.com/tari-project/tari-core/consensus/hotstuff/committees"
)

// Committee is the ordered set of replicas of an asset. It is read-only
// once built.
type Committee struct {
	members []ReplicaID
	index   map[ReplicaID]int
}

// NewCommittee returns a committee of the given members in order.
func NewCommittee(members []ReplicaID) (*Committee, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("committee must not be empty")
	}
	c := &Committee{
		members: append([]ReplicaID(nil), members...),
		index:   make(map[ReplicaID]int, len(members)),
	}
	for i, member := range members {
		if _, ok := c.index[member]; ok {
			return nil, fmt.Errorf("duplicate committee member %s", member)
		}
		c.index[member] = i
	}
	return c, nil
}

// LeaderForView returns the round-robin leader of view.
func (c *Committee) LeaderForView(view ViewID) ReplicaID {
	return c.members[uint64(view)%uint64(len(c.members))]
}

// ConsensusThreshold is the quorum size: for 3f+1 members it is 2f+1.
func (c *Committee) ConsensusThreshold() int {
	return int(committees.QuorumThreshold(uint64(len(c.members))))
}

// Contains returns true if id is a member.
func (c *Committee) Contains(id ReplicaID) bool {
	_, ok := c.index[id]
	return ok
}

// Members returns a copy of the members in order.
func (c *Committee) Members() []ReplicaID {
	return append([]ReplicaID(nil), c.members...)
}

func (c *Committee) Len() int {
	return len(c.members)
}
