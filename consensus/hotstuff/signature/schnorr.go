package signature

import (
	"fmt"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/crypto"
	"github.com/tari-project/tari-core/model/chain"
	model "github.com/tari-project/tari-core/model/hotstuff"
)

// KeyRing maps committee members to their public keys.
type KeyRing map[model.ReplicaID]chain.PublicKey

// NewKeyRing derives the public keys of the given private keys.
func NewKeyRing(keys map[model.ReplicaID]chain.PrivateKey) (KeyRing, error) {
	ring := make(KeyRing, len(keys))
	for id, key := range keys {
		pub, err := crypto.PublicKeyFromPrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("invalid key of %s: %w", id, err)
		}
		ring[id] = pub
	}
	return ring, nil
}

// SchnorrSigningService signs votes with the replica's own key and verifies
// the votes of the other members against the key ring.
type SchnorrSigningService struct {
	self model.ReplicaID
	key  chain.PrivateKey
	ring KeyRing
}

var _ hotstuff.SigningService = (*SchnorrSigningService)(nil)

func NewSchnorrSigningService(self model.ReplicaID, key chain.PrivateKey, ring KeyRing) *SchnorrSigningService {
	return &SchnorrSigningService{
		self: self,
		key:  key,
		ring: ring,
	}
}

func (s *SchnorrSigningService) Sign(signer model.ReplicaID, challenge []byte) (chain.Signature, error) {
	if signer != s.self {
		return chain.Signature{}, fmt.Errorf("cannot sign for %s, holding the key of %s", signer, s.self)
	}
	sig, err := crypto.Sign(s.key, challenge)
	if err != nil {
		return chain.Signature{}, fmt.Errorf("could not sign challenge: %w", err)
	}
	return sig, nil
}

func (s *SchnorrSigningService) Verify(signer model.ReplicaID, challenge []byte, sig chain.Signature) bool {
	pub, ok := s.ring[signer]
	if !ok {
		return false
	}
	return crypto.Verify(sig, pub, challenge)
}
