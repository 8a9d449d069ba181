package pow

import (
	"fmt"

	"github.com/tari-project/tari-core/model/chain"
)

// AchievedTargetDifficulty is a header difficulty that is known to meet its
// target. It can only be built through TryConstruct.
type AchievedTargetDifficulty struct {
	algo     chain.PowAlgorithm
	target   chain.Difficulty
	achieved chain.Difficulty
}

// TryConstruct returns the pair if achieved meets target.
func TryConstruct(algo chain.PowAlgorithm, target, achieved chain.Difficulty) (*AchievedTargetDifficulty, bool) {
	if achieved < target {
		return nil, false
	}
	return &AchievedTargetDifficulty{algo: algo, target: target, achieved: achieved}, true
}

func (a *AchievedTargetDifficulty) Algo() chain.PowAlgorithm   { return a.algo }
func (a *AchievedTargetDifficulty) Target() chain.Difficulty   { return a.target }
func (a *AchievedTargetDifficulty) Achieved() chain.Difficulty { return a.achieved }

func (a *AchievedTargetDifficulty) String() string {
	return fmt.Sprintf("%s achieved %d (target %d)", a.algo, a.achieved, a.target)
}
