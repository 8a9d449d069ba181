// Package pow implements the proof-of-work difficulty oracle. Every function
// is pure and returns an error instead of panicking on any header input.
package pow

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/tari-project/tari-core/crypto/hash"
	"github.com/tari-project/tari-core/model/chain"
)

const (
	sha3xRounds    = 3
	blake2bdRounds = 2
	// MaxBlake2bdPowDataLength is the largest extra-nonce a Blake2bd header may carry.
	MaxBlake2bdPowDataLength = 32
)

var (
	// ErrUnsupportedAlgorithm is returned for headers with an unknown algorithm.
	ErrUnsupportedAlgorithm = errors.New("unsupported proof-of-work algorithm")
	// ErrInvalidPowData is returned when the pow data does not fit the algorithm.
	ErrInvalidPowData = errors.New("invalid proof-of-work data")
)

// DifficultyError is returned when a digest cannot be reduced to a difficulty
// that fits a uint64.
type DifficultyError struct {
	Digest chain.Hash
	Reason string
}

func (e DifficultyError) Error() string {
	return fmt.Sprintf("could not compute difficulty of digest %s: %s", e.Digest, e.Reason)
}

// IsDifficultyError returns whether err is a DifficultyError.
func IsDifficultyError(err error) bool {
	var e DifficultyError
	return errors.As(err, &e)
}

// powInput is the canonical serialisation hashed by every algorithm:
// nonce (little endian) ‖ mining hash ‖ pow data.
func powInput(header *chain.BlockHeader) []byte {
	mining := header.MiningHash()
	buf := make([]byte, 8, 8+chain.HashLength+len(header.Pow.Data))
	binary.LittleEndian.PutUint64(buf, header.Nonce)
	buf = append(buf, mining[:]...)
	return append(buf, header.Pow.Data...)
}

// Sha3xHash is SHA3-256 applied three times to the pow input.
func Sha3xHash(header *chain.BlockHeader) chain.Hash {
	var out chain.Hash
	copy(out[:], hash.Iterate(hash.NewSHA3_256(), powInput(header), sha3xRounds))
	return out
}

// Blake2bdHash is Blake2b-256 applied twice to the pow input.
func Blake2bdHash(header *chain.BlockHeader) chain.Hash {
	var out chain.Hash
	copy(out[:], hash.Iterate(hash.NewBlake2b_256(), powInput(header), blake2bdRounds))
	return out
}

// PowHash returns the digest of the header under its own algorithm.
func PowHash(header *chain.BlockHeader) (chain.Hash, error) {
	switch header.Pow.Algo {
	case chain.PowAlgoSha3x:
		return Sha3xHash(header), nil
	case chain.PowAlgoBlake2bd:
		return Blake2bdHash(header), nil
	default:
		return chain.ZeroHash, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, header.Pow.Algo)
	}
}

// AchievedDifficulty returns the difficulty achieved by the header.
func AchievedDifficulty(header *chain.BlockHeader) (chain.Difficulty, error) {
	digest, err := PowHash(header)
	if err != nil {
		return 0, err
	}
	return BigEndianDifficulty(digest)
}

// BigEndianDifficulty reduces a digest to floor((2^256 - 1) / digest), reading
// the digest as a big-endian integer.
func BigEndianDifficulty(digest chain.Hash) (chain.Difficulty, error) {
	scalar := new(uint256.Int).SetBytes32(digest[:])
	if scalar.IsZero() {
		return 0, DifficultyError{Digest: digest, Reason: "digest is zero"}
	}
	max := new(uint256.Int).SetAllOne()
	result := new(uint256.Int).Div(max, scalar)
	if !result.IsUint64() {
		return 0, DifficultyError{Digest: digest, Reason: "difficulty overflows uint64"}
	}
	return chain.Difficulty(result.Uint64()), nil
}

// CheckPowData verifies that the pow data is well formed for the algorithm.
func CheckPowData(header *chain.BlockHeader) error {
	switch header.Pow.Algo {
	case chain.PowAlgoSha3x:
		if len(header.Pow.Data) != 0 {
			return fmt.Errorf("%w: sha3x headers carry no pow data (got %d bytes)", ErrInvalidPowData, len(header.Pow.Data))
		}
		return nil
	case chain.PowAlgoBlake2bd:
		if len(header.Pow.Data) > MaxBlake2bdPowDataLength {
			return fmt.Errorf("%w: blake2bd pow data is %d bytes, at most %d allowed",
				ErrInvalidPowData, len(header.Pow.Data), MaxBlake2bdPowDataLength)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, header.Pow.Algo)
	}
}
