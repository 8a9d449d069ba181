package validation

import (
	"github.com/tari-project/tari-core/consensus/rules"
	"github.com/tari-project/tari-core/crypto"
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/storage"
)

// ChainBalanceValidator checks conservation of value at a height:
//
//	Σutxo == commit(emission, 0) + Σkernel excess + commit(0, Σoffset)
//
// It walks every header from genesis, so it is only run at sync boundaries.
type ChainBalanceValidator struct {
	rules       *rules.Manager
	commitments *crypto.CommitmentFactory
}

func NewChainBalanceValidator(rules *rules.Manager, commitments *crypto.CommitmentFactory) *ChainBalanceValidator {
	return &ChainBalanceValidator{rules: rules, commitments: commitments}
}

// Validate checks the balance at height for the given UTXO and kernel sums.
// The kernel sum must already have burned commitments subtracted; see
// CalculateChainBalanceSums.
//
// Expected errors during normal operations:
//   - ChainBalanceValidationFailedError if the sums do not balance
//   - MalformedInputError if a sum or offset does not decode
//   - InfrastructureError if the headers cannot be read
func (v *ChainBalanceValidator) Validate(
	height uint64,
	totalUTXOSum chain.Commitment,
	totalKernelSum chain.Commitment,
	backend storage.ChainBackend,
) error {
	offset := crypto.Zero()
	for h := uint64(0); h <= height; h++ {
		header, err := backend.HeaderByHeight(h)
		if err != nil {
			return NewInfrastructureErrorf("could not read header #%d: %w", h, err)
		}
		k, err := crypto.ScalarFromPrivateKey(header.TotalKernelOffset)
		if err != nil {
			return NewMalformedInputErrorf("invalid kernel offset of header #%d: %w", h, err)
		}
		offset = offset.Add(k)
	}

	utxo, err := crypto.PointFromCommitment(totalUTXOSum)
	if err != nil {
		return NewMalformedInputErrorf("invalid UTXO sum: %w", err)
	}
	kernels, err := crypto.PointFromCommitment(totalKernelSum)
	if err != nil {
		return NewMalformedInputErrorf("invalid kernel sum: %w", err)
	}
	emission := v.commitments.CommitValue(uint64(v.rules.TotalEmission(height)), crypto.Zero())
	offsetCommitment := v.commitments.CommitValue(0, offset)

	if !utxo.Equal(emission.Add(kernels).Add(offsetCommitment)) {
		return ChainBalanceValidationFailedError{Height: height}
	}
	return nil
}

// CalculateChainBalanceSums sums the unspent output commitments and the
// kernel excesses of a backend. Burn commitments are subtracted from the
// kernel sum since burned outputs never enter the UTXO set.
func CalculateChainBalanceSums(backend storage.ChainBackend) (chain.Commitment, chain.Commitment, error) {
	utxo := crypto.Identity()
	err := backend.ForEachUnspentOutput(func(record *storage.OutputRecord) error {
		p, err := crypto.PointFromCommitment(record.Output.Commitment)
		if err != nil {
			return NewMalformedInputErrorf("invalid commitment of %s: %w", record.Output.Hash(), err)
		}
		utxo = utxo.Add(p)
		return nil
	})
	if err != nil {
		return chain.Commitment{}, chain.Commitment{}, err
	}

	kernels := crypto.Identity()
	err = backend.ForEachKernel(func(record *storage.KernelRecord) error {
		p, err := crypto.PointFromCommitment(record.Kernel.Excess)
		if err != nil {
			return NewMalformedInputErrorf("invalid excess of %s: %w", record.Kernel.Hash(), err)
		}
		kernels = kernels.Add(p)
		if record.Kernel.BurnCommitment != nil {
			burned, err := crypto.PointFromCommitment(*record.Kernel.BurnCommitment)
			if err != nil {
				return NewMalformedInputErrorf("invalid burn commitment of %s: %w", record.Kernel.Hash(), err)
			}
			kernels = kernels.Sub(burned)
		}
		return nil
	})
	if err != nil {
		return chain.Commitment{}, chain.Commitment{}, err
	}
	return utxo.Commitment(), kernels.Commitment(), nil
}
