package pow

import (
	"math"

	"github.com/ef-ds/deque"
	"github.com/holiman/uint256"

	"github.com/tari-project/tari-core/model/chain"
)

// maxSolveTimeFactor caps a single solve time at this multiple of the target time.
const maxSolveTimeFactor = 6

type timestampedDifficulty struct {
	timestamp  uint64
	difficulty chain.Difficulty
}

// TargetDifficultyWindow computes the target difficulty of the next block of
// one algorithm with a linear weighted moving average over the most recent
// blocks of that algorithm. Recent solve times carry more weight.
type TargetDifficultyWindow struct {
	window        deque.Deque
	blockWindow   int
	targetTime    uint64
	minDifficulty chain.Difficulty
	maxDifficulty chain.Difficulty
}

// NewTargetDifficultyWindow returns an empty window holding up to
// blockWindow+1 samples.
func NewTargetDifficultyWindow(blockWindow int, targetTime uint64, minDifficulty, maxDifficulty chain.Difficulty) *TargetDifficultyWindow {
	return &TargetDifficultyWindow{
		blockWindow:   blockWindow,
		targetTime:    targetTime,
		minDifficulty: minDifficulty,
		maxDifficulty: maxDifficulty,
	}
}

// AddFront inserts an older sample. Samples must be added from the newest to
// the oldest with AddFront, or from the oldest to the newest with AddBack.
func (w *TargetDifficultyWindow) AddFront(timestamp uint64, target chain.Difficulty) {
	if w.IsFull() {
		return
	}
	w.window.PushFront(timestampedDifficulty{timestamp: timestamp, difficulty: target})
}

// AddBack appends the newest sample, evicting the oldest when full.
func (w *TargetDifficultyWindow) AddBack(timestamp uint64, target chain.Difficulty) {
	if w.IsFull() {
		w.window.PopFront()
	}
	w.window.PushBack(timestampedDifficulty{timestamp: timestamp, difficulty: target})
}

// IsFull returns true when the window holds blockWindow+1 samples.
func (w *TargetDifficultyWindow) IsFull() bool {
	return w.window.Len() >= w.blockWindow+1
}

// Len returns the number of samples.
func (w *TargetDifficultyWindow) Len() int {
	return w.window.Len()
}

func (w *TargetDifficultyWindow) samples() []timestampedDifficulty {
	n := w.window.Len()
	out := make([]timestampedDifficulty, 0, n)
	for i := 0; i < n; i++ {
		v, _ := w.window.PopFront()
		s := v.(timestampedDifficulty)
		out = append(out, s)
		w.window.PushBack(s)
	}
	return out
}

// CalculateTarget returns the target difficulty for the next block. With
// fewer than two samples the minimum difficulty is returned. A target beyond
// the uint64 range saturates at the maximum difficulty.
func (w *TargetDifficultyWindow) CalculateTarget() chain.Difficulty {
	raw := w.calculate()
	if raw == nil {
		return w.minDifficulty
	}
	target := chain.Difficulty(math.MaxUint64)
	if raw.IsUint64() {
		target = chain.Difficulty(raw.Uint64())
	}
	if target < w.minDifficulty {
		return w.minDifficulty
	}
	if w.maxDifficulty > 0 && target > w.maxDifficulty {
		return w.maxDifficulty
	}
	return target
}

// calculate returns the unclamped weighted target, or nil without enough
// samples.
func (w *TargetDifficultyWindow) calculate() *uint256.Int {
	samples := w.samples()
	if len(samples) < 2 {
		return nil
	}
	n := uint64(len(samples) - 1)

	difficultySum := new(uint256.Int)
	weightedTimes := new(uint256.Int)
	previous := samples[0].timestamp
	for i := uint64(1); i <= n; i++ {
		s := samples[i]
		this := s.timestamp
		if this <= previous {
			this = previous + 1
		}
		solveTime := this - previous
		if solveTime > maxSolveTimeFactor*w.targetTime {
			solveTime = maxSolveTimeFactor * w.targetTime
		}
		previous = this
		weightedTimes.Add(weightedTimes, new(uint256.Int).Mul(uint256.NewInt(solveTime), uint256.NewInt(i)))
		difficultySum.Add(difficultySum, uint256.NewInt(uint64(s.difficulty)))
	}
	if weightedTimes.IsZero() {
		return nil
	}

	// k = n(n+1)/2 * targetTime
	k := new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(n+1))
	k.Rsh(k, 1)
	k.Mul(k, uint256.NewInt(w.targetTime))

	average := new(uint256.Int).Div(difficultySum, uint256.NewInt(n))
	target := new(uint256.Int).Mul(average, k)
	return target.Div(target, weightedTimes)
}
