package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tari-project/tari-core/model/chain"
)

func TestManager_ConsensusConstantsByHeight(t *testing.T) {
	first := LocalNetConstants()[0]
	second := first
	second.EffectiveFromHeight = 100
	second.CoinbaseMinMaturity = 1000

	m, err := NewManager(LocalNet, second, first)
	require.NoError(t, err)

	assert.Equal(t, uint64(6), m.ConsensusConstants(0).CoinbaseMinMaturity)
	assert.Equal(t, uint64(6), m.ConsensusConstants(99).CoinbaseMinMaturity)
	assert.Equal(t, uint64(1000), m.ConsensusConstants(100).CoinbaseMinMaturity)
	assert.Equal(t, uint64(1100), m.CoinbaseLockHeight(100))
}

func TestManager_RequiresGenesisConstants(t *testing.T) {
	c := LocalNetConstants()[0]
	c.EffectiveFromHeight = 5
	_, err := NewManager(LocalNet, c)
	assert.Error(t, err)
}

func TestManager_TotalEmission(t *testing.T) {
	c := LocalNetConstants()[0]
	c.EmissionInitial = 1_000_000
	c.EmissionDecay = []uint64{1, 2}
	c.EmissionTail = 100
	c.FaucetValue = 5

	m, err := NewManager(LocalNet, c)
	require.NoError(t, err)
	assert.Equal(t, chain.MicroTari(5), m.TotalEmission(0))
	assert.Equal(t, chain.MicroTari(1_250_005), m.TotalEmission(2))
	assert.Equal(t, chain.MicroTari(250_000), m.BlockReward(2))
}

func TestDefaultConstants(t *testing.T) {
	for _, network := range []Network{LocalNet, Esmeralda} {
		m, err := NewManager(network)
		require.NoError(t, err)
		c := m.ConsensusConstants(0)
		for _, algo := range chain.PowAlgorithms {
			_, ok := c.PowAlgorithm(algo)
			assert.True(t, ok, "%s: %s", network, algo)
		}
		assert.True(t, c.IsPermittedOutputType(chain.OutputTypeCoinbase))
	}

	_, err := ParseNetwork("nope")
	assert.Error(t, err)
}
