package hotstuff

import (
	"fmt"

	"github.com/tari-project/tari-core/model/chain"
)

// HotStuffMessageType is the phase a message belongs to.
type HotStuffMessageType uint8

const (
	MessageTypeGenesis HotStuffMessageType = iota
	MessageTypeNewView
	MessageTypePrepare
	MessageTypePreCommit
	MessageTypeCommit
	MessageTypeDecide
)

func (t HotStuffMessageType) String() string {
	switch t {
	case MessageTypeGenesis:
		return "genesis"
	case MessageTypeNewView:
		return "new_view"
	case MessageTypePrepare:
		return "prepare"
	case MessageTypePreCommit:
		return "pre_commit"
	case MessageTypeCommit:
		return "commit"
	case MessageTypeDecide:
		return "decide"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// HotStuffMessage is exchanged between the replicas of a committee. Leader
// messages carry a Justify certificate (and, for PREPARE, the proposed
// node); votes carry a PartialSig over the node hash instead.
type HotStuffMessage struct {
	Type       HotStuffMessageType
	ViewNumber ViewID
	Node       *HotStuffTreeNode
	NodeHash   TreeNodeHash
	Justify    *QuorumCertificate
	PartialSig *ValidatorSignature
	AssetID    chain.PublicKey
}

// NewViewMessage tells the leader of view which certificate the sender
// holds.
func NewViewMessage(prepareQC *QuorumCertificate, view ViewID, asset chain.PublicKey) *HotStuffMessage {
	return &HotStuffMessage{
		Type:       MessageTypeNewView,
		ViewNumber: view,
		Justify:    prepareQC,
		AssetID:    asset,
	}
}

// PrepareMessage proposes node, justified by the highest certificate the
// leader collected.
func PrepareMessage(node *HotStuffTreeNode, highQC *QuorumCertificate, view ViewID, asset chain.PublicKey) *HotStuffMessage {
	return &HotStuffMessage{
		Type:       MessageTypePrepare,
		ViewNumber: view,
		Node:       node,
		NodeHash:   node.Hash(),
		Justify:    highQC,
		AssetID:    asset,
	}
}

// CertificateMessage broadcasts the certificate formed in the previous
// phase (PRE_COMMIT, COMMIT and DECIDE).
func CertificateMessage(messageType HotStuffMessageType, qc *QuorumCertificate, view ViewID, asset chain.PublicKey) *HotStuffMessage {
	return &HotStuffMessage{
		Type:       messageType,
		ViewNumber: view,
		NodeHash:   qc.NodeHash,
		Justify:    qc,
		AssetID:    asset,
	}
}

// VoteMessage is a replica's vote for node. It must be signed with
// AddPartialSig before it is sent.
func VoteMessage(messageType HotStuffMessageType, node TreeNodeHash, view ViewID, asset chain.PublicKey) *HotStuffMessage {
	return &HotStuffMessage{
		Type:       messageType,
		ViewNumber: view,
		NodeHash:   node,
		AssetID:    asset,
	}
}

// CreateSignatureChallenge is the message signed by a vote.
func (m *HotStuffMessage) CreateSignatureChallenge() []byte {
	return VoteChallenge(m.Type, m.ViewNumber, m.NodeHash)
}

// AddPartialSig attaches the sender's signature over the challenge.
func (m *HotStuffMessage) AddPartialSig(sig ValidatorSignature) {
	m.PartialSig = &sig
}

// IsVote returns true for votes sent to the leader.
func (m *HotStuffMessage) IsVote() bool {
	return m.PartialSig != nil && m.Justify == nil
}

// Matches returns true if the message is of the given type and view.
func (m *HotStuffMessage) Matches(messageType HotStuffMessageType, view ViewID) bool {
	return m.Type == messageType && m.ViewNumber == view
}

func (m *HotStuffMessage) String() string {
	kind := "proposal"
	if m.IsVote() {
		kind = "vote"
	}
	return fmt.Sprintf("%s %s at %s for node %s", m.Type, kind, m.ViewNumber, m.NodeHash)
}
