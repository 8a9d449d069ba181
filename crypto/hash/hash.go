// Package hash wraps the fixed-output hash functions used by the
// proof-of-work algorithms.
package hash

import (
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashingAlgorithm identifies a hash function.
type HashingAlgorithm int

const (
	UnknownHashingAlgorithm HashingAlgorithm = iota
	SHA3_256
	Blake2b_256
)

func (a HashingAlgorithm) String() string {
	switch a {
	case SHA3_256:
		return "SHA3_256"
	case Blake2b_256:
		return "BLAKE2B_256"
	default:
		return "UNKNOWN"
	}
}

// Hash is a digest.
type Hash []byte

// Hasher is a stateful hash function.
type Hasher interface {
	hash.Hash
	// Algorithm returns the hashing algorithm of the hasher.
	Algorithm() HashingAlgorithm
	// ComputeHash resets the state and returns the digest of data.
	ComputeHash(data []byte) Hash
	// SumHash returns the digest of everything written so far.
	SumHash() Hash
}

type commonHasher struct {
	hash.Hash
	algo HashingAlgorithm
}

// NewSHA3_256 returns a new SHA3-256 hasher.
func NewSHA3_256() Hasher {
	return &commonHasher{Hash: sha3.New256(), algo: SHA3_256}
}

// NewBlake2b_256 returns a new unkeyed Blake2b-256 hasher.
func NewBlake2b_256() Hasher {
	h, err := blake2b.New256(nil)
	if err != nil {
		// unkeyed construction cannot fail
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	return &commonHasher{Hash: h, algo: Blake2b_256}
}

// NewHasher returns a hasher for the given algorithm.
func NewHasher(algo HashingAlgorithm) (Hasher, error) {
	switch algo {
	case SHA3_256:
		return NewSHA3_256(), nil
	case Blake2b_256:
		return NewBlake2b_256(), nil
	default:
		return nil, fmt.Errorf("unsupported hashing algorithm: %s", algo)
	}
}

func (h *commonHasher) Algorithm() HashingAlgorithm {
	return h.algo
}

func (h *commonHasher) ComputeHash(data []byte) Hash {
	h.Reset()
	_, _ = h.Write(data)
	return h.Sum(nil)
}

func (h *commonHasher) SumHash() Hash {
	return h.Sum(nil)
}

// Iterate hashes data once, then hashes the digest again rounds-1 times.
func Iterate(h Hasher, data []byte, rounds int) Hash {
	digest := h.ComputeHash(data)
	for i := 1; i < rounds; i++ {
		digest = h.ComputeHash(digest)
	}
	return digest
}
