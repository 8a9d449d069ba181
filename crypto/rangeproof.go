package crypto

import (
	"errors"
	"fmt"

	"github.com/tari-project/tari-core/model/chain"
)

const revealedValueDomain = "tari.range_proof.revealed_value"

// ErrInvalidRangeProof is returned when a range proof does not verify.
var ErrInvalidRangeProof = errors.New("invalid range proof")

// RangeProofService constructs and verifies output range proofs.
type RangeProofService struct {
	factory *CommitmentFactory
}

// NewRangeProofService returns a service for commitments of the given factory.
func NewRangeProofService(factory *CommitmentFactory) *RangeProofService {
	return &RangeProofService{factory: factory}
}

func revealedValueMessage(c chain.Commitment, value chain.MicroTari) []byte {
	h := chain.NewDomainHasher(revealedValueDomain).
		WriteFixed(c[:]).
		WriteUint64(uint64(value)).
		Finalize()
	return h[:]
}

// ConstructRevealedValue proves that commitment opens to value by signing with
// the blinding factor against `C - v*H`.
func (s *RangeProofService) ConstructRevealedValue(
	value chain.MicroTari,
	blinding chain.BlindingFactor,
	commitment chain.Commitment,
	nonce chain.PrivateKey,
) (chain.RangeProof, error) {
	sig, err := SignWithNonce(blinding, nonce, revealedValueMessage(commitment, value))
	if err != nil {
		return chain.RangeProof{}, fmt.Errorf("could not sign revealed value: %w", err)
	}
	return chain.RangeProof{
		Type:                chain.RangeProofRevealedValue,
		MinimumValuePromise: value,
		Signature:           sig,
	}, nil
}

// Verify checks the range proof of a single output.
func (s *RangeProofService) Verify(output *chain.TransactionOutput) error {
	switch output.Proof.Type {
	case chain.RangeProofRevealedValue:
		c, err := PointFromCommitment(output.Commitment)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRangeProof, err)
		}
		blindingPoint := c.Sub(s.factory.ValueGenerator().Mul(ScalarFromUint64(uint64(output.Proof.MinimumValuePromise))))
		if blindingPoint.IsIdentity() {
			return fmt.Errorf("%w: zero blinding factor", ErrInvalidRangeProof)
		}
		msg := revealedValueMessage(output.Commitment, output.Proof.MinimumValuePromise)
		if !verifyPoint(output.Proof.Signature, blindingPoint.PublicKey(), blindingPoint, msg) {
			return fmt.Errorf("%w: revealed value signature does not verify", ErrInvalidRangeProof)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported range proof type %d", ErrInvalidRangeProof, output.Proof.Type)
	}
}
