package storage

import (
	"github.com/tari-project/tari-core/model/hotstuff"
)

// TreeNodeRecord is the stored form of a proposal tree node. The payload is
// kept in its encoded form.
type TreeNodeRecord struct {
	Hash      hotstuff.TreeNodeHash
	Parent    hotstuff.TreeNodeHash
	Payload   []byte
	StateRoot hotstuff.StateRoot
	Height    uint32
	Justify   *hotstuff.QuorumCertificate
}
