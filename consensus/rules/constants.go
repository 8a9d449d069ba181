// Package rules holds the consensus constants of each network and the
// emission schedule derived from them.
package rules

import (
	"fmt"
	"time"

	"github.com/tari-project/tari-core/model/chain"
)

// Network identifies a chain.
type Network string

const (
	LocalNet  Network = "localnet"
	Esmeralda Network = "esmeralda"
)

// ParseNetwork returns the network with the given name.
func ParseNetwork(name string) (Network, error) {
	switch Network(name) {
	case LocalNet, Esmeralda:
		return Network(name), nil
	default:
		return "", fmt.Errorf("unknown network %q", name)
	}
}

// PowAlgorithmConstants are the per-algorithm difficulty parameters.
type PowAlgorithmConstants struct {
	MinDifficulty chain.Difficulty
	MaxDifficulty chain.Difficulty
	// TargetTime is the target solve time in seconds.
	TargetTime uint64
}

// VersionRange is an inclusive range of accepted versions.
type VersionRange struct {
	Min uint8
	Max uint8
}

// Contains returns true if v is within the range.
func (r VersionRange) Contains(v uint8) bool {
	return v >= r.Min && v <= r.Max
}

// ConsensusConstants are the rules in force from EffectiveFromHeight onwards.
type ConsensusConstants struct {
	EffectiveFromHeight uint64
	BlockchainVersion   uint16
	// CoinbaseMinMaturity is the number of blocks a coinbase output is locked for.
	CoinbaseMinMaturity uint64
	// FutureTimeLimit is how far in the future a header timestamp may be.
	FutureTimeLimit           time.Duration
	MedianTimestampCount      int
	DifficultyBlockWindow     int
	MaxBlockTransactionWeight uint64
	TransactionWeight         chain.TransactionWeight
	ProofOfWork               map[chain.PowAlgorithm]PowAlgorithmConstants

	EmissionInitial chain.MicroTari
	EmissionDecay   []uint64
	EmissionTail    chain.MicroTari
	// FaucetValue is the value of the genesis outputs, on top of emission.
	FaucetValue chain.MicroTari

	InputVersionRange    VersionRange
	OutputVersionRange   VersionRange
	KernelVersionRange   VersionRange
	PermittedOutputTypes []chain.OutputType
	MaxCovenantLength    int
}

// PowAlgorithm returns the difficulty parameters of algo.
func (c *ConsensusConstants) PowAlgorithm(algo chain.PowAlgorithm) (PowAlgorithmConstants, bool) {
	p, ok := c.ProofOfWork[algo]
	return p, ok
}

// IsPermittedOutputType returns true if outputs of type t may be created.
func (c *ConsensusConstants) IsPermittedOutputType(t chain.OutputType) bool {
	for _, p := range c.PermittedOutputTypes {
		if p == t {
			return true
		}
	}
	return false
}

var allOutputTypes = []chain.OutputType{chain.OutputTypeStandard, chain.OutputTypeCoinbase, chain.OutputTypeBurn}

// LocalNetConstants are fast, low-difficulty rules for local testing.
func LocalNetConstants() []ConsensusConstants {
	return []ConsensusConstants{{
		EffectiveFromHeight:       0,
		BlockchainVersion:         1,
		CoinbaseMinMaturity:       6,
		FutureTimeLimit:           540 * time.Second,
		MedianTimestampCount:      11,
		DifficultyBlockWindow:     90,
		MaxBlockTransactionWeight: 19_500,
		TransactionWeight:         chain.DefaultTransactionWeight,
		ProofOfWork: map[chain.PowAlgorithm]PowAlgorithmConstants{
			chain.PowAlgoSha3x:    {MinDifficulty: 1, MaxDifficulty: 0, TargetTime: 120},
			chain.PowAlgoBlake2bd: {MinDifficulty: 1, MaxDifficulty: 0, TargetTime: 120},
		},
		EmissionInitial:      5_538_846_115,
		EmissionDecay:        []uint64{21, 22, 23, 25, 26, 37, 38, 40},
		EmissionTail:         100_000_000,
		FaucetValue:          1_000_000_000,
		InputVersionRange:    VersionRange{Min: 0, Max: 0},
		OutputVersionRange:   VersionRange{Min: 0, Max: 0},
		KernelVersionRange:   VersionRange{Min: 0, Max: 0},
		PermittedOutputTypes: allOutputTypes,
		MaxCovenantLength:    100,
	}}
}

// EsmeraldaConstants are the rules of the public test network.
func EsmeraldaConstants() []ConsensusConstants {
	c := LocalNetConstants()[0]
	c.CoinbaseMinMaturity = 360
	c.ProofOfWork = map[chain.PowAlgorithm]PowAlgorithmConstants{
		chain.PowAlgoSha3x:    {MinDifficulty: 60_000, MaxDifficulty: 0, TargetTime: 240},
		chain.PowAlgoBlake2bd: {MinDifficulty: 60_000, MaxDifficulty: 0, TargetTime: 240},
	}
	c.FaucetValue = 0
	return []ConsensusConstants{c}
}

// DefaultConstants returns the constants of a network.
func DefaultConstants(network Network) ([]ConsensusConstants, error) {
	switch network {
	case LocalNet:
		return LocalNetConstants(), nil
	case Esmeralda:
		return EsmeraldaConstants(), nil
	default:
		return nil, fmt.Errorf("no consensus constants for network %q", network)
	}
}
