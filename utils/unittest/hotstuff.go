package unittest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tari-project/tari-core/crypto"
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/model/hotstuff"
)

// ReplicaIDs returns n replica addresses, replica-0 to replica-(n-1).
func ReplicaIDs(n int) []hotstuff.ReplicaID {
	ids := make([]hotstuff.ReplicaID, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, hotstuff.ReplicaID(fmt.Sprintf("replica-%d", i)))
	}
	return ids
}

// ReplicaKeys derives a deterministic private key per replica.
func ReplicaKeys(ids []hotstuff.ReplicaID) map[hotstuff.ReplicaID]chain.PrivateKey {
	keys := make(map[hotstuff.ReplicaID]chain.PrivateKey, len(ids))
	for _, id := range ids {
		keys[id] = crypto.PrivateKeyFromSeed([]byte(id))
	}
	return keys
}

// CommitteeFixture returns a committee of n replicas.
func CommitteeFixture(t testing.TB, n int) *hotstuff.Committee {
	committee, err := hotstuff.NewCommittee(ReplicaIDs(n))
	require.NoError(t, err)
	return committee
}

// AssetKeyFixture derives an asset public key from name.
func AssetKeyFixture(t testing.TB, name string) chain.PublicKey {
	key, err := crypto.PublicKeyFromPrivateKey(crypto.PrivateKeyFromSeed([]byte("asset:" + name)))
	require.NoError(t, err)
	return key
}

// AssetFixture returns an asset governed by members.
func AssetFixture(t testing.TB, members []hotstuff.ReplicaID) *hotstuff.AssetDefinition {
	return &hotstuff.AssetDefinition{
		PublicKey:          AssetKeyFixture(t, "fixture"),
		CheckpointUniqueID: []byte("checkpoint"),
		InitialState:       "genesis",
		Committee:          members,
	}
}

// QuorumCertificateFixture returns a certificate for node signed by signers.
func QuorumCertificateFixture(
	t require.TestingT,
	keys map[hotstuff.ReplicaID]chain.PrivateKey,
	messageType hotstuff.HotStuffMessageType,
	view hotstuff.ViewID,
	node hotstuff.TreeNodeHash,
	signers ...hotstuff.ReplicaID,
) *hotstuff.QuorumCertificate {
	qc := &hotstuff.QuorumCertificate{
		MessageType: messageType,
		ViewNumber:  view,
		NodeHash:    node,
	}
	challenge := qc.Challenge()
	for _, signer := range signers {
		sig, err := crypto.Sign(keys[signer], challenge)
		require.NoError(t, err)
		qc.Signatures = append(qc.Signatures, hotstuff.ValidatorSignature{Signer: signer, Signature: sig})
	}
	return qc
}

// TreeNodeFixture returns a node extending parent with a text payload.
func TreeNodeFixture(parent *hotstuff.HotStuffTreeNode, text string, justify *hotstuff.QuorumCertificate) *hotstuff.HotStuffTreeNode {
	return hotstuff.FromParent(parent.Hash(), hotstuff.NewTextPayload(text), hotstuff.InitialStateRoot(), parent.Height()+1, justify)
}
