package hotstuff

import (
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/model/hotstuff"
)

// SafetyRules decides whether the replica may vote.
type SafetyRules interface {
	// IsSafeNode checks the safe-node rule for a proposal: the node must
	// extend the node of lockedQC, or its justify certificate must be from a
	// later view than lockedQC. Returns model.PreparePhaseNodeNotSafeError
	// otherwise.
	IsSafeNode(view hotstuff.ViewID, node *hotstuff.HotStuffTreeNode, lockedQC *hotstuff.QuorumCertificate) error

	// ProduceVote signs a vote for node in the given phase of view.
	// Returns:
	//  * (vote, nil): on the first vote for this phase of this view.
	//  * (nil, model.NoVoteError): if the replica already voted in this or a
	//    later phase. This is expected during normal operation.
	// All other errors are unexpected.
	ProduceVote(phase hotstuff.HotStuffMessageType, view hotstuff.ViewID, node hotstuff.TreeNodeHash, asset chain.PublicKey) (*hotstuff.HotStuffMessage, error)
}
