package hotstuff

import (
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/model/hotstuff"
)

// SigningService signs and verifies committee votes.
type SigningService interface {
	// Sign signs challenge with the key of signer. It fails if the service
	// does not hold that key.
	Sign(signer hotstuff.ReplicaID, challenge []byte) (chain.Signature, error)

	// Verify returns true if sig is signer's signature over challenge.
	// Unknown signers never verify.
	Verify(signer hotstuff.ReplicaID, challenge []byte, sig chain.Signature) bool
}
