package votecollector

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

var ErrIncompatibleVote = errors.New("vote for incompatible phase, view or node")

// VoteCollector gathers the votes of one phase of a view for one node and
// builds the quorum certificate once a threshold of distinct members voted.
// Concurrently safe.
type VoteCollector struct {
	verifier  hotstuff.Verifier
	committee *mhotstuff.Committee
	phase     mhotstuff.HotStuffMessageType
	view      mhotstuff.ViewID
	node      mhotstuff.TreeNodeHash

	lock       sync.Mutex
	signatures []mhotstuff.ValidatorSignature
	signers    map[mhotstuff.ReplicaID]struct{}
	qc         *mhotstuff.QuorumCertificate
}

func NewVoteCollector(
	verifier hotstuff.Verifier,
	committee *mhotstuff.Committee,
	phase mhotstuff.HotStuffMessageType,
	view mhotstuff.ViewID,
	node mhotstuff.TreeNodeHash,
) *VoteCollector {
	return &VoteCollector{
		verifier:  verifier,
		committee: committee,
		phase:     phase,
		view:      view,
		node:      node,
		signers:   make(map[mhotstuff.ReplicaID]struct{}, committee.Len()),
	}
}

// AddVote verifies and records the vote received from sender. It returns
// the certificate when this vote completed the quorum, and nil otherwise.
// Repeated votes of a member are ignored.
// Returns:
//   - ErrIncompatibleVote if the vote is for another phase, view or node
//   - model.InvalidMessageError if the vote is not signed by its sender
//   - model.InvalidSignerError or model.ErrInvalidSignature from the verifier
func (c *VoteCollector) AddVote(sender mhotstuff.ReplicaID, vote *mhotstuff.HotStuffMessage) (*mhotstuff.QuorumCertificate, error) {
	if !vote.Matches(c.phase, c.view) || vote.NodeHash != c.node {
		return nil, fmt.Errorf("%s, collecting %s votes at %s for %s: %w", vote, c.phase, c.view, c.node, ErrIncompatibleVote)
	}
	if vote.PartialSig == nil || vote.PartialSig.Signer != sender {
		return nil, model.NewInvalidMessageErrorf(sender, vote.ViewNumber, "vote is not signed by its sender")
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.signers[sender]; ok {
		return nil, nil
	}
	err := c.verifier.VerifyVote(c.committee, vote)
	if err != nil {
		return nil, fmt.Errorf("could not verify %s: %w", vote, err)
	}
	c.signers[sender] = struct{}{}
	c.signatures = append(c.signatures, *vote.PartialSig)

	if c.qc != nil || len(c.signers) < c.committee.ConsensusThreshold() {
		return nil, nil
	}
	c.qc = &mhotstuff.QuorumCertificate{
		MessageType: c.phase,
		ViewNumber:  c.view,
		NodeHash:    c.node,
		Signatures:  append([]mhotstuff.ValidatorSignature(nil), c.signatures...),
	}
	return c.qc, nil
}

// QC returns the certificate, or nil while the quorum is incomplete.
func (c *VoteCollector) QC() *mhotstuff.QuorumCertificate {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.qc
}
