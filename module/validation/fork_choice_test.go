package validation_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/module/validation"
)

func TestForkChoice(t *testing.T) {
	var choice validation.ForkChoice

	assert.True(t, choice.IsBetter(uint256.NewInt(10), uint256.NewInt(11)))
	assert.False(t, choice.IsBetter(uint256.NewInt(11), uint256.NewInt(10)))
	// equal work keeps the chain seen first
	assert.False(t, choice.IsBetter(uint256.NewInt(10), uint256.NewInt(10)))
}

func TestForkChoice_AccumulatedData(t *testing.T) {
	var choice validation.ForkChoice
	current := &chain.BlockHeaderAccumulatedData{AccumulatedSha3xDifficulty: 6, AccumulatedBlake2bdDifficulty: 2}
	// same product of per-algorithm difficulties
	tie := &chain.BlockHeaderAccumulatedData{AccumulatedSha3xDifficulty: 3, AccumulatedBlake2bdDifficulty: 4}
	heavier := &chain.BlockHeaderAccumulatedData{AccumulatedSha3xDifficulty: 13}

	assert.False(t, choice.IsBetterChain(current, tie))
	assert.False(t, choice.IsBetterChain(tie, current))
	assert.True(t, choice.IsBetterChain(current, heavier))
}
