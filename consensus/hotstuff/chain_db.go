package hotstuff

import (
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/model/hotstuff"
)

// DbFactory opens the committee chain database of an asset.
type DbFactory interface {
	GetOrCreateChainDb(asset chain.PublicKey) (ChainDb, error)
}

// ChainDb persists the proposal tree and the certificates of one asset.
// All methods are safe for concurrent use.
type ChainDb interface {
	// IsEmpty returns true until the genesis node has been stored.
	IsEmpty() (bool, error)

	// FindHighestPreparedQC returns the prepare certificate from the highest
	// view seen. It is the genesis QC right after genesis.
	FindHighestPreparedQC() (*hotstuff.QuorumCertificate, error)
	GetLockedQC() (*hotstuff.QuorumCertificate, error)
	SetLockedQC(qc *hotstuff.QuorumCertificate) error

	// SetPreparedQC stores qc unless a certificate from a higher view is
	// already stored.
	SetPreparedQC(qc *hotstuff.QuorumCertificate) error

	AddNode(node *hotstuff.HotStuffTreeNode) error
	// Node returns storage.ErrNotFound for an unknown hash.
	Node(hash hotstuff.TreeNodeHash) (*hotstuff.HotStuffTreeNode, error)
	// CommitNode marks the node as committed at its height.
	CommitNode(node *hotstuff.HotStuffTreeNode) error
	// CommittedNode returns the node committed at height.
	CommittedNode(height uint32) (*hotstuff.HotStuffTreeNode, error)

	// LastVotedView returns the last view the replica voted in, and false if
	// it never voted.
	LastVotedView() (hotstuff.ViewID, bool, error)
	SetLastVotedView(view hotstuff.ViewID) error
}
