package crypto

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/tari-project/tari-core/model/chain"
)

const valueGeneratorDomain = "tari.pedersen.value_generator"

// CommitmentFactory creates Pedersen commitments `v*H + k*G`. H is derived
// from a fixed label so that nobody knows its discrete log relative to G.
type CommitmentFactory struct {
	h *Point
}

// NewCommitmentFactory returns a factory using the default value generator.
func NewCommitmentFactory() *CommitmentFactory {
	return &CommitmentFactory{h: hashToPoint(valueGeneratorDomain)}
}

// hashToPoint maps a label onto the curve by try-and-increment.
func hashToPoint(label string) *Point {
	for counter := uint64(0); ; counter++ {
		var ctr [8]byte
		binary.LittleEndian.PutUint64(ctr[:], counter)
		digest := chain.NewDomainHasher(label).WriteFixed(ctr[:]).Finalize()
		var encoded chain.PublicKey
		encoded[0] = 0x02
		copy(encoded[1:], digest[:])
		pk, err := btcec.ParsePubKey(encoded[:])
		if err != nil {
			continue
		}
		var p Point
		pk.AsJacobian(&p.j)
		return &p
	}
}

// ValueGenerator returns H.
func (f *CommitmentFactory) ValueGenerator() *Point {
	return f.h
}

// CommitScalars returns v*H + k*G.
func (f *CommitmentFactory) CommitScalars(value *Scalar, blinding *Scalar) *Point {
	return f.h.Mul(value).Add(BasePoint(blinding))
}

// CommitValue returns value*H + k*G.
func (f *CommitmentFactory) CommitValue(value uint64, blinding *Scalar) *Point {
	return f.CommitScalars(ScalarFromUint64(value), blinding)
}

// Commit returns the encoded commitment to value with the given blinding factor.
func (f *CommitmentFactory) Commit(value uint64, blinding chain.BlindingFactor) (chain.Commitment, error) {
	k, err := ScalarFromPrivateKey(blinding)
	if err != nil {
		return chain.Commitment{}, fmt.Errorf("could not commit: %w", err)
	}
	return f.CommitValue(value, k).Commitment(), nil
}

// Open returns true if c commits to value with the given blinding factor.
func (f *CommitmentFactory) Open(c chain.Commitment, value uint64, blinding chain.BlindingFactor) bool {
	expected, err := f.Commit(value, blinding)
	if err != nil {
		return false
	}
	return expected == c
}
