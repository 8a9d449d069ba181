package hotstuff

import (
	"encoding/hex"

	"github.com/tari-project/tari-core/model/chain"
)

const (
	treeNodeHashDomain = "tari.dan.tree_node"
	stateRootDomain    = "tari.dan.state_root"
)

// TreeNodeHash identifies a node of the proposal tree.
type TreeNodeHash chain.Hash

func (h TreeNodeHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero returns true for the hash that denotes "no node".
func (h TreeNodeHash) IsZero() bool {
	return h == TreeNodeHash{}
}

// StateRoot commits to the asset state after a node's payload is applied.
type StateRoot chain.Hash

func (r StateRoot) String() string {
	return hex.EncodeToString(r[:])
}

// InitialStateRoot is the state root of an asset before any payload.
func InitialStateRoot() StateRoot {
	return StateRoot(chain.NewDomainHasher(stateRootDomain).Finalize())
}

// HotStuffTreeNode is a proposal in the append-only tree of an asset. Nodes
// refer to their parent and to the certificate they extend by hash only.
// The hash is computed once at construction.
type HotStuffTreeNode struct {
	parent    TreeNodeHash
	payload   Payload
	stateRoot StateRoot
	height    uint32
	justify   *QuorumCertificate
	hash      TreeNodeHash
}

// Genesis returns the root node of an asset's proposal tree. It has no
// parent and is justified by the genesis QC over its own hash.
func Genesis(payload Payload, stateRoot StateRoot) *HotStuffTreeNode {
	node := &HotStuffTreeNode{
		payload:   payload,
		stateRoot: stateRoot,
	}
	node.hash = node.calculateHash()
	node.justify = GenesisQC(node.hash)
	return node
}

// FromParent returns a node extending parent.
func FromParent(
	parent TreeNodeHash,
	payload Payload,
	stateRoot StateRoot,
	height uint32,
	justify *QuorumCertificate,
) *HotStuffTreeNode {
	node := &HotStuffTreeNode{
		parent:    parent,
		payload:   payload,
		stateRoot: stateRoot,
		height:    height,
		justify:   justify,
	}
	node.hash = node.calculateHash()
	return node
}

// calculateHash hashes the parent, payload, state root, height and the
// justify QC. The genesis QC refers to the genesis node itself, so a genesis
// node hashes a zero justify hash.
func (n *HotStuffTreeNode) calculateHash() TreeNodeHash {
	payloadHash := n.payload.ConsensusHash()
	var justifyHash chain.Hash
	if n.justify != nil && !n.justify.IsGenesis() {
		justifyHash = n.justify.Hash()
	}
	return TreeNodeHash(chain.NewDomainHasher(treeNodeHashDomain).
		WriteFixed(n.parent[:]).
		WriteFixed(payloadHash[:]).
		WriteFixed(n.stateRoot[:]).
		WriteUint64(uint64(n.height)).
		WriteFixed(justifyHash[:]).
		Finalize())
}

func (n *HotStuffTreeNode) Hash() TreeNodeHash          { return n.hash }
func (n *HotStuffTreeNode) Parent() TreeNodeHash        { return n.parent }
func (n *HotStuffTreeNode) Payload() Payload            { return n.payload }
func (n *HotStuffTreeNode) StateRoot() StateRoot        { return n.stateRoot }
func (n *HotStuffTreeNode) Height() uint32              { return n.height }
func (n *HotStuffTreeNode) Justify() *QuorumCertificate { return n.justify }

// IsGenesis returns true for the root node.
func (n *HotStuffTreeNode) IsGenesis() bool {
	return n.parent.IsZero() && n.height == 0
}

// Extends returns true if the node's parent is the given node.
func (n *HotStuffTreeNode) Extends(parent TreeNodeHash) bool {
	return n.parent == parent
}

// IsConsistent returns true if the cached hash matches the node's fields.
// Nodes decoded from the wire must be checked before use.
func (n *HotStuffTreeNode) IsConsistent() bool {
	return n.payload != nil && n.calculateHash() == n.hash
}

// UntrustedTreeNode is the decoded form of a tree node, used to rebuild a
// node received from a peer or read from storage.
type UntrustedTreeNode struct {
	Parent    TreeNodeHash
	Payload   Payload
	StateRoot StateRoot
	Height    uint32
	Justify   *QuorumCertificate
	Hash      TreeNodeHash
}

// NewTreeNode rebuilds a node, keeping the hash it was announced with so
// that IsConsistent can detect tampering.
func NewTreeNode(untrusted UntrustedTreeNode) *HotStuffTreeNode {
	return &HotStuffTreeNode{
		parent:    untrusted.Parent,
		payload:   untrusted.Payload,
		stateRoot: untrusted.StateRoot,
		height:    untrusted.Height,
		justify:   untrusted.Justify,
		hash:      untrusted.Hash,
	}
}

// Untrusted returns the decoded form of the node.
func (n *HotStuffTreeNode) Untrusted() UntrustedTreeNode {
	return UntrustedTreeNode{
		Parent:    n.parent,
		Payload:   n.payload,
		StateRoot: n.stateRoot,
		Height:    n.height,
		Justify:   n.justify,
		Hash:      n.hash,
	}
}
