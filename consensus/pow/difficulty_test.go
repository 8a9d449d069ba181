package pow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tari-project/tari-core/model/chain"
)

func knownAnswerHeader(algo chain.PowAlgorithm, timestamp uint64) *chain.BlockHeader {
	return &chain.BlockHeader{
		Version:   1,
		Height:    1,
		Timestamp: timestamp,
		Nonce:     154,
		Pow:       chain.ProofOfWork{Algo: algo},
	}
}

// TestAchievedDifficulty_KnownAnswer pins the oracle output for fixed headers.
func TestAchievedDifficulty_KnownAnswer(t *testing.T) {
	t.Run("sha3x", func(t *testing.T) {
		header := knownAnswerHeader(chain.PowAlgoSha3x, 1600072794)
		assert.Equal(t, "00002c8aa488fbbbdead3db7e617feb3d9571c23e9819a1525c2752a1784a1b3", Sha3xHash(header).String())

		difficulty, err := AchievedDifficulty(header)
		require.NoError(t, err)
		assert.Equal(t, chain.Difficulty(376664), difficulty)
	})

	t.Run("blake2bd", func(t *testing.T) {
		header := knownAnswerHeader(chain.PowAlgoBlake2bd, 1600000000)
		assert.Equal(t, "20385389856c5c4841f2997eaeac147f74858ba35bad613df2ed5fbfd801aee3", Blake2bdHash(header).String())

		difficulty, err := AchievedDifficulty(header)
		require.NoError(t, err)
		assert.Equal(t, chain.Difficulty(7), difficulty)
	})

	t.Run("deterministic", func(t *testing.T) {
		header := knownAnswerHeader(chain.PowAlgoSha3x, 1600072794)
		first, err := AchievedDifficulty(header)
		require.NoError(t, err)
		second, err := AchievedDifficulty(header)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestAchievedDifficulty_UnknownAlgorithm(t *testing.T) {
	header := knownAnswerHeader(chain.PowAlgorithm(9), 0)
	_, err := AchievedDifficulty(header)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestBigEndianDifficulty(t *testing.T) {
	t.Run("zero digest", func(t *testing.T) {
		_, err := BigEndianDifficulty(chain.ZeroHash)
		require.Error(t, err)
		assert.True(t, IsDifficultyError(err))
	})

	t.Run("overflow", func(t *testing.T) {
		var digest chain.Hash
		digest[31] = 1
		_, err := BigEndianDifficulty(digest)
		require.Error(t, err)
		assert.True(t, IsDifficultyError(err))
	})

	t.Run("largest digest", func(t *testing.T) {
		var digest chain.Hash
		for i := range digest {
			digest[i] = 0xff
		}
		d, err := BigEndianDifficulty(digest)
		require.NoError(t, err)
		assert.Equal(t, chain.Difficulty(1), d)
	})

	t.Run("exact power of two", func(t *testing.T) {
		// 2^192 -> floor((2^256-1)/2^192) = 2^64-1
		var digest chain.Hash
		digest[7] = 1
		d, err := BigEndianDifficulty(digest)
		require.NoError(t, err)
		assert.Equal(t, chain.Difficulty(^uint64(0)), d)
	})
}

func TestCheckPowData(t *testing.T) {
	header := knownAnswerHeader(chain.PowAlgoSha3x, 0)
	require.NoError(t, CheckPowData(header))

	header.Pow.Data = []byte{1}
	assert.ErrorIs(t, CheckPowData(header), ErrInvalidPowData)

	header.Pow.Algo = chain.PowAlgoBlake2bd
	require.NoError(t, CheckPowData(header))

	header.Pow.Data = make([]byte, MaxBlake2bdPowDataLength+1)
	assert.ErrorIs(t, CheckPowData(header), ErrInvalidPowData)
}

func TestTryConstruct(t *testing.T) {
	_, ok := TryConstruct(chain.PowAlgoSha3x, 100, 99)
	assert.False(t, ok)

	a, ok := TryConstruct(chain.PowAlgoSha3x, 100, 100)
	require.True(t, ok)
	assert.Equal(t, chain.Difficulty(100), a.Achieved())
	assert.Equal(t, chain.Difficulty(100), a.Target())
	assert.Equal(t, chain.PowAlgoSha3x, a.Algo())
}

func TestTargetDifficultyWindow(t *testing.T) {
	t.Run("too few samples", func(t *testing.T) {
		w := NewTargetDifficultyWindow(90, 120, 60, 0)
		assert.Equal(t, chain.Difficulty(60), w.CalculateTarget())
		w.AddBack(1000, 5000)
		assert.Equal(t, chain.Difficulty(60), w.CalculateTarget())
	})

	t.Run("on target keeps difficulty", func(t *testing.T) {
		w := NewTargetDifficultyWindow(10, 120, 1, 0)
		for i := uint64(0); i <= 10; i++ {
			w.AddBack(1000+i*120, 5000)
		}
		assert.True(t, w.IsFull())
		assert.Equal(t, chain.Difficulty(5000), w.CalculateTarget())
	})

	t.Run("fast blocks raise difficulty", func(t *testing.T) {
		w := NewTargetDifficultyWindow(10, 120, 1, 0)
		for i := uint64(0); i <= 10; i++ {
			w.AddBack(1000+i*60, 5000)
		}
		assert.Equal(t, chain.Difficulty(10000), w.CalculateTarget())
	})

	t.Run("window evicts the oldest sample", func(t *testing.T) {
		w := NewTargetDifficultyWindow(2, 120, 1, 0)
		w.AddBack(0, 1)
		w.AddBack(120, 1000)
		w.AddBack(240, 1000)
		w.AddBack(360, 1000)
		assert.Equal(t, 3, w.Len())
		assert.Equal(t, chain.Difficulty(1000), w.CalculateTarget())
	})

	t.Run("clamped to max", func(t *testing.T) {
		w := NewTargetDifficultyWindow(10, 120, 1, 2000)
		for i := uint64(0); i <= 10; i++ {
			w.AddBack(1000+i*60, 5000)
		}
		assert.Equal(t, chain.Difficulty(2000), w.CalculateTarget())
	})

	t.Run("overflow saturates", func(t *testing.T) {
		fill := func(w *TargetDifficultyWindow) {
			for i := uint64(0); i <= 10; i++ {
				w.AddBack(1000+i, math.MaxUint64/2)
			}
		}
		w := NewTargetDifficultyWindow(10, 120, 1, 0)
		fill(w)
		assert.Equal(t, chain.Difficulty(math.MaxUint64), w.CalculateTarget())

		w = NewTargetDifficultyWindow(10, 120, 1, 1<<62)
		fill(w)
		assert.Equal(t, chain.Difficulty(1<<62), w.CalculateTarget())
	})
}
