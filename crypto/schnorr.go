package crypto

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/tari-project/tari-core/model/chain"
)

const schnorrChallengeDomain = "tari.schnorr.challenge"

// Challenge computes the Schnorr challenge `e = H(R ‖ P ‖ msg)`.
func Challenge(nonce chain.PublicKey, pub chain.PublicKey, msg []byte) *Scalar {
	return ScalarFromHash(chain.NewDomainHasher(schnorrChallengeDomain).
		WriteFixed(nonce[:]).
		WriteFixed(pub[:]).
		WriteBytes(msg).
		Finalize())
}

// SignWithNonce signs msg with secret key k and secret nonce r.
// It returns (R, s) with R = r*G and s = r + e*k.
func SignWithNonce(k chain.PrivateKey, r chain.PrivateKey, msg []byte) (chain.Signature, error) {
	ks, err := ScalarFromPrivateKey(k)
	if err != nil {
		return chain.Signature{}, err
	}
	rs, err := ScalarFromPrivateKey(r)
	if err != nil {
		return chain.Signature{}, err
	}
	if rs.IsZero() {
		return chain.Signature{}, newInvalidInputsErrorf("signature nonce must not be zero")
	}
	pub := BasePoint(ks).PublicKey()
	nonce := BasePoint(rs).PublicKey()
	e := Challenge(nonce, pub, msg)
	return chain.Signature{
		PublicNonce: nonce,
		S:           rs.Add(e.Mul(ks)).PrivateKey(),
	}, nil
}

// Sign signs msg with secret key k and a fresh random nonce.
func Sign(k chain.PrivateKey, msg []byte) (chain.Signature, error) {
	r, err := NewPrivateKey()
	if err != nil {
		return chain.Signature{}, err
	}
	return SignWithNonce(k, r, msg)
}

// Verify checks `s*G == R + e*P`. Malformed encodings fail verification.
func Verify(sig chain.Signature, pub chain.PublicKey, msg []byte) bool {
	p, err := PointFromPublicKey(pub)
	if err != nil || p.IsIdentity() {
		return false
	}
	return verifyPoint(sig, pub, p, msg)
}

func verifyPoint(sig chain.Signature, pub chain.PublicKey, p *Point, msg []byte) bool {
	r, err := PointFromPublicKey(sig.PublicNonce)
	if err != nil || r.IsIdentity() {
		return false
	}
	s, err := ScalarFromPrivateKey(sig.S)
	if err != nil {
		return false
	}
	e := Challenge(sig.PublicNonce, pub, msg)
	return BasePoint(s).Equal(r.Add(p.Mul(e)))
}

// NewPrivateKey returns a uniformly random non-zero scalar.
func NewPrivateKey() (chain.PrivateKey, error) {
	k, err := btcec.NewPrivateKey()
	if err != nil {
		return chain.PrivateKey{}, err
	}
	return chain.PrivateKey(k.Key.Bytes()), nil
}

// PrivateKeyFromSeed derives a scalar deterministically from a seed.
func PrivateKeyFromSeed(seed []byte) chain.PrivateKey {
	digest := chain.NewDomainHasher("tari.key_from_seed").WriteBytes(seed).Finalize()
	s := ScalarFromHash(digest)
	if s.IsZero() {
		s = ScalarFromUint64(1)
	}
	return s.PrivateKey()
}
