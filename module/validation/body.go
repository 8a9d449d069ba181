package validation

import (
	"github.com/tari-project/tari-core/model/chain"
)

// AggregateBodyValidator runs the internal consistency check followed by the
// chain-linked check.
type AggregateBodyValidator struct {
	internal    *AggregateBodyInternalConsistencyValidator
	chainLinked *AggregateBodyChainLinkedValidator
}

func NewAggregateBodyValidator(
	internal *AggregateBodyInternalConsistencyValidator,
	chainLinked *AggregateBodyChainLinkedValidator,
) *AggregateBodyValidator {
	return &AggregateBodyValidator{internal: internal, chainLinked: chainLinked}
}

// Validate checks a body with the given offsets and block reward, extending
// the block prevHeaderHash at height. A nil reward validates a transaction.
func (v *AggregateBodyValidator) Validate(
	body *chain.AggregateBody,
	offset chain.BlindingFactor,
	scriptOffset chain.PrivateKey,
	reward *chain.MicroTari,
	prevHeaderHash *chain.Hash,
	height uint64,
) error {
	err := v.internal.Validate(body, offset, scriptOffset, reward, height)
	if err != nil {
		return err
	}
	return v.chainLinked.Validate(body, prevHeaderHash, height)
}
