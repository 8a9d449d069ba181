package chain

import (
	"bytes"
	"encoding/hex"
)

const (
	// PrivateKeyLength is the length of an encoded secp256k1 scalar.
	PrivateKeyLength = 32
	// PublicKeyLength is the length of a compressed secp256k1 point.
	PublicKeyLength = 33
)

// PrivateKey is a big-endian encoded scalar. It is used for blinding
// factors, kernel offsets and the s-part of signatures.
type PrivateKey [PrivateKeyLength]byte

// BlindingFactor is the private key that blinds a commitment.
type BlindingFactor = PrivateKey

func (k PrivateKey) String() string { return hex.EncodeToString(k[:]) }

// IsZero returns true for the zero scalar.
func (k PrivateKey) IsZero() bool { return k == PrivateKey{} }

// PublicKey is a compressed curve point. The all-zero encoding denotes the
// point at infinity.
type PublicKey [PublicKeyLength]byte

func (k PublicKey) String() string { return hex.EncodeToString(k[:]) }

// IsZero returns true for the identity encoding.
func (k PublicKey) IsZero() bool { return k == PublicKey{} }

// Commitment is a Pedersen commitment `v*H + k*G`, encoded like a PublicKey.
type Commitment PublicKey

func (c Commitment) String() string { return hex.EncodeToString(c[:]) }

// IsZero returns true for the identity encoding.
func (c Commitment) IsZero() bool { return c == Commitment{} }

// Compare orders commitments lexicographically by their encoding.
func (c Commitment) Compare(other Commitment) int {
	return bytes.Compare(c[:], other[:])
}

// Signature is a Schnorr signature `(R, s)` with `s*G = R + e*P`.
type Signature struct {
	PublicNonce PublicKey
	S           PrivateKey
}

// IsZero returns true if neither component is set.
func (s Signature) IsZero() bool {
	return s.PublicNonce.IsZero() && s.S.IsZero()
}
