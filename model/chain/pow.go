package chain

import "fmt"

// PowAlgorithm selects the proof-of-work construction of a header.
type PowAlgorithm uint8

const (
	// PowAlgoSha3x hashes the mining input three times with SHA3-256.
	PowAlgoSha3x PowAlgorithm = iota
	// PowAlgoBlake2bd hashes the mining input twice with Blake2b-256.
	PowAlgoBlake2bd
)

// PowAlgorithms lists all supported algorithms.
var PowAlgorithms = []PowAlgorithm{PowAlgoSha3x, PowAlgoBlake2bd}

func (a PowAlgorithm) String() string {
	switch a {
	case PowAlgoSha3x:
		return "Sha3x"
	case PowAlgoBlake2bd:
		return "Blake2bd"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(a))
	}
}

// IsValid returns true if the algorithm is supported.
func (a PowAlgorithm) IsValid() bool {
	return a == PowAlgoSha3x || a == PowAlgoBlake2bd
}

// ProofOfWork holds the algorithm and any algorithm-specific data.
type ProofOfWork struct {
	Algo PowAlgorithm
	Data []byte
}
