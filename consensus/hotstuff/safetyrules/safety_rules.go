package safetyrules

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	"github.com/tari-project/tari-core/model/chain"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/storage"
)

// SafetyRules produces the votes of a replica. It never votes twice in the
// same phase of a view, nor in an earlier phase or view than its last vote.
type SafetyRules struct {
	self   mhotstuff.ReplicaID
	signer hotstuff.SigningService
	db     hotstuff.ChainDb

	lock      sync.Mutex
	voted     bool
	lastView  mhotstuff.ViewID
	lastPhase mhotstuff.HotStuffMessageType
}

var _ hotstuff.SafetyRules = (*SafetyRules)(nil)

// New creates SafetyRules for the replica self, resuming after the last view
// persisted in db. A replica restarted in the view it last voted in does
// not vote again in that view.
func New(self mhotstuff.ReplicaID, signer hotstuff.SigningService, db hotstuff.ChainDb) (*SafetyRules, error) {
	lastView, voted, err := db.LastVotedView()
	if err != nil {
		return nil, fmt.Errorf("could not load last voted view: %w", err)
	}
	return &SafetyRules{
		self:      self,
		signer:    signer,
		db:        db,
		voted:     voted,
		lastView:  lastView,
		lastPhase: mhotstuff.MessageTypeDecide,
	}, nil
}

// IsSafeNode applies the safe-node rule. The ancestry of node is walked
// through the chain database, so every ancestor must have been stored.
func (r *SafetyRules) IsSafeNode(view mhotstuff.ViewID, node *mhotstuff.HotStuffTreeNode, lockedQC *mhotstuff.QuorumCertificate) error {
	// liveness: a certificate newer than the lock unlocks the replica
	if node.Justify() != nil && node.Justify().ViewNumber > lockedQC.ViewNumber {
		return nil
	}
	extends, err := r.extends(node, lockedQC.NodeHash)
	if err != nil {
		return model.NewDigitalAssetErrorf("could not walk ancestry of %s: %w", node.Hash(), err)
	}
	if !extends {
		return model.PreparePhaseNodeNotSafeError{View: view, Node: node.Hash(), LockedQC: lockedQC}
	}
	return nil
}

func (r *SafetyRules) extends(node *mhotstuff.HotStuffTreeNode, ancestor mhotstuff.TreeNodeHash) (bool, error) {
	if node.Hash() == ancestor {
		return true, nil
	}
	current := node
	for !current.IsGenesis() {
		if current.Parent() == ancestor {
			return true, nil
		}
		parent, err := r.db.Node(current.Parent())
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if parent.Height() >= current.Height() {
			return false, nil
		}
		current = parent
	}
	return false, nil
}

// ProduceVote signs a vote for node.
// Returns:
//   - (vote, nil) on the first vote for this phase of this view
//   - (nil, model.NoVoteError) if the replica already voted in this or a
//     later phase
//
// All other errors are unexpected.
func (r *SafetyRules) ProduceVote(
	phase mhotstuff.HotStuffMessageType,
	view mhotstuff.ViewID,
	node mhotstuff.TreeNodeHash,
	asset chain.PublicKey,
) (*mhotstuff.HotStuffMessage, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.voted && (view < r.lastView || (view == r.lastView && phase <= r.lastPhase)) {
		return nil, model.NoVoteError{Msg: fmt.Sprintf("already voted %s at %s", r.lastPhase, r.lastView)}
	}

	vote := mhotstuff.VoteMessage(phase, node, view, asset)
	sig, err := r.signer.Sign(r.self, vote.CreateSignatureChallenge())
	if err != nil {
		return nil, fmt.Errorf("could not sign vote: %w", err)
	}
	vote.AddPartialSig(mhotstuff.ValidatorSignature{Signer: r.self, Signature: sig})

	if !r.voted || view > r.lastView {
		err = r.db.SetLastVotedView(view)
		if err != nil {
			return nil, model.NewDigitalAssetErrorf("could not persist last voted view: %w", err)
		}
	}
	r.voted = true
	r.lastView = view
	r.lastPhase = phase
	return vote, nil
}
