package validation

import (
	"errors"

	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/storage"
)

// AggregateBodyChainLinkedValidator checks an aggregate body against the
// chain state it is about to extend.
type AggregateBodyChainLinkedValidator struct {
	backend storage.ChainBackend
}

func NewAggregateBodyChainLinkedValidator(backend storage.ChainBackend) *AggregateBodyChainLinkedValidator {
	return &AggregateBodyChainLinkedValidator{backend: backend}
}

// Validate checks that the backend tip is prevHeaderHash (when given), that
// every input spends an existing unspent output or one created in the same
// body, that no output exists already, and that input maturities and kernel
// lock heights have elapsed at height.
//
// Expected errors during normal operations:
//   - TransactionError naming the failed rule
//   - InfrastructureError if the backend cannot be read
func (v *AggregateBodyChainLinkedValidator) Validate(body *chain.AggregateBody, prevHeaderHash *chain.Hash, height uint64) error {
	if prevHeaderHash != nil {
		metadata, err := v.backend.ChainMetadata()
		if err != nil {
			return NewInfrastructureErrorf("could not read chain tip: %w", err)
		}
		if metadata.BestBlock != *prevHeaderHash {
			return NewTransactionErrorf(ErrKindStaleTip, "body extends %s but the tip is %s", *prevHeaderHash, metadata.BestBlock)
		}
	}

	created := make(map[chain.Hash]struct{}, len(body.Outputs))
	for i := range body.Outputs {
		output := &body.Outputs[i]
		hash := output.Hash()
		// burned outputs never enter the output set, so nothing can spend them
		if !output.IsBurned() {
			created[hash] = struct{}{}
		}
		err := v.checkOutputIsNew(output, hash)
		if err != nil {
			return err
		}
	}

	for i := range body.Inputs {
		input := &body.Inputs[i]
		err := v.checkInputIsSpendable(input, created)
		if err != nil {
			return err
		}
		if !input.IsMatureAt(height) {
			return NewTransactionErrorf(ErrKindImmatureInput, "%s matures at height %d, block height is %d",
				input, input.Features.Maturity, height)
		}
	}

	for i := range body.Kernels {
		kernel := &body.Kernels[i]
		if kernel.LockHeight > height {
			return NewTransactionErrorf(ErrKindKernelLockHeight, "%s is locked until height %d, block height is %d",
				kernel, kernel.LockHeight, height)
		}
	}
	return nil
}

func (v *AggregateBodyChainLinkedValidator) checkOutputIsNew(output *chain.TransactionOutput, hash chain.Hash) error {
	_, err := v.backend.FetchOutput(hash)
	if err == nil {
		return NewTransactionErrorf(ErrKindOutputExists, "%s already exists", output)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return NewInfrastructureErrorf("could not look up output %s: %w", hash, err)
	}
	existing, err := v.backend.OutputHashByCommitment(output.Commitment)
	if err == nil {
		return NewTransactionErrorf(ErrKindOutputExists, "commitment %s is already used by unspent output %s",
			output.Commitment, existing)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return NewInfrastructureErrorf("could not look up commitment %s: %w", output.Commitment, err)
	}
	return nil
}

func (v *AggregateBodyChainLinkedValidator) checkInputIsSpendable(input *chain.TransactionInput, created map[chain.Hash]struct{}) error {
	hash := input.OutputHash()
	if _, ok := created[hash]; ok {
		return nil
	}
	_, err := v.backend.FetchOutput(hash)
	if errors.Is(err, storage.ErrNotFound) {
		return NewTransactionErrorf(ErrKindUnknownInput, "%s spends an unknown output", input)
	}
	if err != nil {
		return NewInfrastructureErrorf("could not look up output %s: %w", hash, err)
	}
	spent, err := v.backend.IsSpent(hash)
	if err != nil {
		return NewInfrastructureErrorf("could not look up spent status of %s: %w", hash, err)
	}
	if spent {
		return NewTransactionErrorf(ErrKindSpentInput, "%s spends an already spent output", input)
	}
	return nil
}
