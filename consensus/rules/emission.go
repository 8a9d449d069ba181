package rules

import (
	"fmt"

	"github.com/tari-project/tari-core/model/chain"
)

// EmissionSchedule is an exponentially decaying block reward with a constant
// tail emission. The reward of block 1 is Initial; every following reward is
// `max(r - Σ(r >> k), Tail)` for each k in Decay. Block 0 has no reward.
type EmissionSchedule struct {
	initial chain.MicroTari
	decay   []uint64
	tail    chain.MicroTari
}

// NewEmissionSchedule returns a schedule. Every decay shift must be below 64.
func NewEmissionSchedule(initial chain.MicroTari, decay []uint64, tail chain.MicroTari) (*EmissionSchedule, error) {
	for _, k := range decay {
		if k >= 64 {
			return nil, fmt.Errorf("decay shift %d would overflow, all shifts must be below 64", k)
		}
	}
	return &EmissionSchedule{initial: initial, decay: decay, tail: tail}, nil
}

// EmissionRate iterates over the schedule block by block.
type EmissionRate struct {
	schedule *EmissionSchedule
	height   uint64
	reward   chain.MicroTari
	supply   chain.MicroTari
}

// Iter returns an iterator positioned at height 0.
func (s *EmissionSchedule) Iter() *EmissionRate {
	return &EmissionRate{schedule: s}
}

// Next advances to the next height. It returns false once the supply would
// overflow.
func (e *EmissionRate) Next() bool {
	if e.height == 0 {
		e.height = 1
		e.reward = e.schedule.initial
		e.supply = e.schedule.initial
		return true
	}
	reward := e.nextReward()
	supply, ok := e.supply.CheckedAdd(reward)
	if !ok {
		return false
	}
	e.height++
	e.reward = reward
	e.supply = supply
	return true
}

func (e *EmissionRate) nextReward() chain.MicroTari {
	r := uint64(e.reward)
	next := r
	for _, k := range e.schedule.decay {
		next -= r >> k
	}
	if chain.MicroTari(next) < e.schedule.tail {
		return e.schedule.tail
	}
	return chain.MicroTari(next)
}

// Height is the current block height.
func (e *EmissionRate) Height() uint64 { return e.height }

// BlockReward is the reward at the current height.
func (e *EmissionRate) BlockReward() chain.MicroTari { return e.reward }

// Supply is the total emission up to and including the current height.
func (e *EmissionRate) Supply() chain.MicroTari { return e.supply }

func (s *EmissionSchedule) at(height uint64) *EmissionRate {
	it := s.Iter()
	for it.Height() < height {
		if !it.Next() {
			break
		}
	}
	return it
}

// BlockReward returns the reward of the block at height.
func (s *EmissionSchedule) BlockReward(height uint64) chain.MicroTari {
	return s.at(height).BlockReward()
}

// SupplyAtBlock returns the total emission up to and including height.
func (s *EmissionSchedule) SupplyAtBlock(height uint64) chain.MicroTari {
	return s.at(height).Supply()
}
