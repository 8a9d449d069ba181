package hotstuff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesis(t *testing.T) {
	genesis := Genesis(NewTextPayload("genesis"), InitialStateRoot())

	assert.True(t, genesis.IsGenesis())
	assert.True(t, genesis.IsConsistent())
	require.NotNil(t, genesis.Justify())
	assert.True(t, genesis.Justify().IsGenesis())
	assert.Equal(t, genesis.Hash(), genesis.Justify().NodeHash)
	assert.Empty(t, genesis.Justify().Signatures)

	// deterministic in its inputs
	again := Genesis(NewTextPayload("genesis"), InitialStateRoot())
	assert.Equal(t, genesis.Hash(), again.Hash())
	other := Genesis(NewTextPayload("other"), InitialStateRoot())
	assert.NotEqual(t, genesis.Hash(), other.Hash())
}

func TestFromParent(t *testing.T) {
	genesis := Genesis(NewTextPayload("genesis"), InitialStateRoot())
	child := FromParent(genesis.Hash(), NewTextPayload("one"), InitialStateRoot(), 1, genesis.Justify())

	assert.False(t, child.IsGenesis())
	assert.True(t, child.Extends(genesis.Hash()))
	assert.False(t, genesis.Extends(child.Hash()))
	assert.NotEqual(t, genesis.Hash(), child.Hash())

	qc := &QuorumCertificate{MessageType: MessageTypePrepare, ViewNumber: 1, NodeHash: child.Hash()}
	grandchild := FromParent(child.Hash(), NewTextPayload("two"), InitialStateRoot(), 2, qc)
	withOtherJustify := FromParent(child.Hash(), NewTextPayload("two"), InitialStateRoot(), 2,
		&QuorumCertificate{MessageType: MessageTypePrepare, ViewNumber: 2, NodeHash: child.Hash()})
	assert.NotEqual(t, grandchild.Hash(), withOtherJustify.Hash())
}

func TestTreeNode_IsConsistent(t *testing.T) {
	genesis := Genesis(NewTextPayload("genesis"), InitialStateRoot())
	node := FromParent(genesis.Hash(), NewTextPayload("one"), InitialStateRoot(), 1, genesis.Justify())

	decoded := NewTreeNode(node.Untrusted())
	assert.True(t, decoded.IsConsistent())
	assert.Equal(t, node.Hash(), decoded.Hash())

	tampered := node.Untrusted()
	tampered.Payload = NewTextPayload("forged")
	assert.False(t, NewTreeNode(tampered).IsConsistent())

	tampered = node.Untrusted()
	tampered.Payload = nil
	assert.False(t, NewTreeNode(tampered).IsConsistent())
}

func TestQuorumCertificate(t *testing.T) {
	node := Genesis(NewTextPayload("genesis"), InitialStateRoot()).Hash()
	qc := &QuorumCertificate{
		MessageType: MessageTypePrepare,
		ViewNumber:  3,
		NodeHash:    node,
		Signatures: []ValidatorSignature{
			{Signer: "a"}, {Signer: "b"}, {Signer: "a"},
		},
	}
	assert.False(t, qc.IsGenesis())
	// votes in view zero form a regular certificate
	assert.False(t, (&QuorumCertificate{MessageType: MessageTypePrepare, NodeHash: node}).IsGenesis())
	assert.Equal(t, []ReplicaID{"a", "b"}, qc.Signers())

	vote := VoteMessage(MessageTypePrepare, node, 3, [33]byte{})
	assert.Equal(t, qc.Challenge(), vote.CreateSignatureChallenge())
	assert.NotEqual(t, qc.Challenge(), VoteChallenge(MessageTypePreCommit, 3, node))
	assert.NotEqual(t, qc.Challenge(), VoteChallenge(MessageTypePrepare, 4, node))

	withoutLast := *qc
	withoutLast.Signatures = qc.Signatures[:2]
	assert.NotEqual(t, qc.Hash(), withoutLast.Hash())
}

func TestHotStuffMessage(t *testing.T) {
	genesis := Genesis(NewTextPayload("genesis"), InitialStateRoot())
	proposal := PrepareMessage(genesis, genesis.Justify(), 1, [33]byte{})
	assert.False(t, proposal.IsVote())
	assert.True(t, proposal.Matches(MessageTypePrepare, 1))
	assert.False(t, proposal.Matches(MessageTypePrepare, 2))

	vote := VoteMessage(MessageTypePrepare, genesis.Hash(), 1, [33]byte{})
	assert.False(t, vote.IsVote())
	vote.AddPartialSig(ValidatorSignature{Signer: "a"})
	assert.True(t, vote.IsVote())
}

func TestCommittee(t *testing.T) {
	_, err := NewCommittee(nil)
	require.Error(t, err)
	_, err = NewCommittee([]ReplicaID{"a", "b", "a"})
	require.Error(t, err)

	committee, err := NewCommittee([]ReplicaID{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, 3, committee.ConsensusThreshold())
	assert.Equal(t, ReplicaID("a"), committee.LeaderForView(0))
	assert.Equal(t, ReplicaID("c"), committee.LeaderForView(2))
	assert.Equal(t, ReplicaID("b"), committee.LeaderForView(5))
	assert.True(t, committee.Contains("d"))
	assert.False(t, committee.Contains("e"))

	members := committee.Members()
	members[0] = "z"
	assert.Equal(t, ReplicaID("a"), committee.LeaderForView(0))

	seven, err := NewCommittee([]ReplicaID{"1", "2", "3", "4", "5", "6", "7"})
	require.NoError(t, err)
	assert.Equal(t, 5, seven.ConsensusThreshold())
}
