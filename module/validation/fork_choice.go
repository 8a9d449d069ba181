package validation

import (
	"github.com/holiman/uint256"

	"github.com/tari-project/tari-core/model/chain"
)

// ForkChoice decides between competing chains by total accumulated
// difficulty. Only a strictly heavier candidate wins; on a tie the chain
// seen first is kept, so equal-work forks never cause a reorg.
type ForkChoice struct{}

// IsBetter returns true if candidate should replace current.
func (ForkChoice) IsBetter(current, candidate *uint256.Int) bool {
	return candidate.Gt(current)
}

// IsBetterChain compares two tips by their accumulated data.
func (f ForkChoice) IsBetterChain(current, candidate *chain.BlockHeaderAccumulatedData) bool {
	return f.IsBetter(current.TotalAccumulatedDifficulty(), candidate.TotalAccumulatedDifficulty())
}
