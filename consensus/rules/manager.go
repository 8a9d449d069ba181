package rules

import (
	"fmt"
	"sort"

	"github.com/tari-project/tari-core/model/chain"
)

// Manager answers consensus-rule queries for a network. It is read-only once
// built and safe for concurrent use.
type Manager struct {
	network   Network
	constants []ConsensusConstants
	emission  *EmissionSchedule
}

// NewManager returns a manager for the network. When no constants are given
// the network defaults are used.
func NewManager(network Network, constants ...ConsensusConstants) (*Manager, error) {
	if len(constants) == 0 {
		var err error
		constants, err = DefaultConstants(network)
		if err != nil {
			return nil, err
		}
	}
	sorted := make([]ConsensusConstants, len(constants))
	copy(sorted, constants)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFromHeight < sorted[j].EffectiveFromHeight
	})
	if sorted[0].EffectiveFromHeight != 0 {
		return nil, fmt.Errorf("the first consensus constants must be effective from height 0, got %d", sorted[0].EffectiveFromHeight)
	}
	genesis := sorted[0]
	emission, err := NewEmissionSchedule(genesis.EmissionInitial, genesis.EmissionDecay, genesis.EmissionTail)
	if err != nil {
		return nil, fmt.Errorf("invalid emission schedule: %w", err)
	}
	return &Manager{network: network, constants: sorted, emission: emission}, nil
}

// Network returns the network of the manager.
func (m *Manager) Network() Network {
	return m.network
}

// ConsensusConstants returns the constants in force at height.
func (m *Manager) ConsensusConstants(height uint64) *ConsensusConstants {
	current := &m.constants[0]
	for i := range m.constants {
		if m.constants[i].EffectiveFromHeight > height {
			break
		}
		current = &m.constants[i]
	}
	return current
}

// EmissionSchedule returns the emission schedule.
func (m *Manager) EmissionSchedule() *EmissionSchedule {
	return m.emission
}

// BlockReward returns the coinbase reward of the block at height, excluding fees.
func (m *Manager) BlockReward(height uint64) chain.MicroTari {
	return m.emission.BlockReward(height)
}

// TotalEmission returns the value in existence after the block at height:
// the emitted supply plus the genesis faucet.
func (m *Manager) TotalEmission(height uint64) chain.MicroTari {
	return m.emission.SupplyAtBlock(height) + m.constants[0].FaucetValue
}

// CoinbaseLockHeight returns the maturity of a coinbase mined at height.
func (m *Manager) CoinbaseLockHeight(height uint64) uint64 {
	return height + m.ConsensusConstants(height).CoinbaseMinMaturity
}
