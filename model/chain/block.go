package chain

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
)

// Difficulty is a proof-of-work difficulty.
type Difficulty uint64

// MinDifficulty is the lowest difficulty a header can have.
const MinDifficulty Difficulty = 1

// CheckedAdd adds two difficulties and reports an overflow.
func (d Difficulty) CheckedAdd(other Difficulty) (Difficulty, bool) {
	sum, carry := bits.Add64(uint64(d), uint64(other), 0)
	return Difficulty(sum), carry == 0
}

// Block is a header with its body.
type Block struct {
	Header BlockHeader
	Body   AggregateBody
}

// NewBlock returns a block for the given header and body.
func NewBlock(header BlockHeader, body AggregateBody) *Block {
	return &Block{Header: header, Body: body}
}

// Hash is the hash of the block header.
func (b *Block) Hash() Hash {
	return b.Header.Hash()
}

func (b *Block) String() string {
	return fmt.Sprintf("block #%d %s with %s", b.Header.Height, b.Hash(), &b.Body)
}

// BlockHeaderAccumulatedData is the data accumulated from genesis up to and
// including a header. It is derived, never part of the header itself.
type BlockHeaderAccumulatedData struct {
	Hash                          Hash
	TotalKernelOffset             PrivateKey
	AccumulatedSha3xDifficulty    Difficulty
	AccumulatedBlake2bdDifficulty Difficulty
	TargetDifficulty              Difficulty
	AchievedDifficulty            Difficulty
}

// TotalAccumulatedDifficulty combines the per-algorithm accumulated
// difficulties into the value used for fork choice.
func (a *BlockHeaderAccumulatedData) TotalAccumulatedDifficulty() *uint256.Int {
	sha := uint256.NewInt(uint64(maxDifficulty(a.AccumulatedSha3xDifficulty, MinDifficulty)))
	blake := uint256.NewInt(uint64(maxDifficulty(a.AccumulatedBlake2bdDifficulty, MinDifficulty)))
	return new(uint256.Int).Mul(sha, blake)
}

// AccumulatedDifficulty returns the accumulated difficulty of one algorithm.
func (a *BlockHeaderAccumulatedData) AccumulatedDifficulty(algo PowAlgorithm) Difficulty {
	if algo == PowAlgoBlake2bd {
		return a.AccumulatedBlake2bdDifficulty
	}
	return a.AccumulatedSha3xDifficulty
}

func maxDifficulty(a, b Difficulty) Difficulty {
	if a > b {
		return a
	}
	return b
}

// ChainHeader is a header together with its accumulated data.
type ChainHeader struct {
	Header          BlockHeader
	AccumulatedData BlockHeaderAccumulatedData
}

// Height returns the header height.
func (c *ChainHeader) Height() uint64 { return c.Header.Height }

// Hash returns the header hash.
func (c *ChainHeader) Hash() Hash { return c.AccumulatedData.Hash }

// ChainBlock is a block together with its accumulated data.
type ChainBlock struct {
	Block           *Block
	AccumulatedData BlockHeaderAccumulatedData
}

// Hash is the hash of the block header.
func (b *ChainBlock) Hash() Hash {
	return b.AccumulatedData.Hash
}

// ChainMetadata describes the tip of the chain held by a backend.
type ChainMetadata struct {
	HeightOfLongestChain uint64
	BestBlock            Hash
	// AccumulatedDifficulty is the big-endian encoding of the tip's total
	// accumulated difficulty.
	AccumulatedDifficulty [32]byte
	PrunedHeight          uint64
}

// TotalAccumulatedDifficulty decodes the tip's accumulated difficulty.
func (m *ChainMetadata) TotalAccumulatedDifficulty() *uint256.Int {
	return new(uint256.Int).SetBytes32(m.AccumulatedDifficulty[:])
}

func (m *ChainMetadata) String() string {
	return fmt.Sprintf("tip #%d %s (difficulty %s)", m.HeightOfLongestChain, m.BestBlock, m.TotalAccumulatedDifficulty())
}
