package storage

import (
	"github.com/tari-project/tari-core/model/chain"
)

// OutputRecord is an output together with the block that created it.
type OutputRecord struct {
	Output      chain.TransactionOutput
	MinedHeight uint64
	HeaderHash  chain.Hash
}

// SpentRecord marks an output as spent by the block at SpentHeight.
type SpentRecord struct {
	SpentHeight uint64
	HeaderHash  chain.Hash
}

// KernelRecord is a kernel together with the block that included it.
type KernelRecord struct {
	Kernel      chain.TransactionKernel
	MinedHeight uint64
	HeaderHash  chain.Hash
}

// SpentOutput is an output mined below a horizon range and spent inside it.
type SpentOutput struct {
	OutputHash chain.Hash
	Commitment chain.Commitment
	Spent      SpentRecord
}

// HorizonState is the change to the output and kernel sets over a range of
// heights, without the block bodies. Outputs both created and spent inside
// the range are left out.
type HorizonState struct {
	// Height is the top of the range, the horizon the state was taken at.
	Height  uint64
	Outputs []OutputRecord
	Spent   []SpentOutput
	Kernels []KernelRecord
}

// ChainBackend is the read side of the base-layer chain store. It is the
// only view of the chain the validators get. Lookups of missing entries
// return ErrNotFound.
type ChainBackend interface {
	// ChainMetadata returns the current tip. It returns ErrNotFound for an
	// empty store.
	ChainMetadata() (*chain.ChainMetadata, error)
	HeaderByHeight(height uint64) (*chain.BlockHeader, error)
	HeaderByHash(hash chain.Hash) (*chain.BlockHeader, error)
	HeaderAccumulatedData(hash chain.Hash) (*chain.BlockHeaderAccumulatedData, error)
	// ChainHeaderByHeight returns a canonical header with its accumulated data.
	ChainHeaderByHeight(height uint64) (*chain.ChainHeader, error)
	BlockBody(hash chain.Hash) (*chain.AggregateBody, error)

	// FetchOutput returns an output by hash, spent or not.
	FetchOutput(outputHash chain.Hash) (*OutputRecord, error)
	// IsSpent returns whether the output has been spent.
	IsSpent(outputHash chain.Hash) (bool, error)
	// OutputHashByCommitment looks up an unspent output by commitment.
	OutputHashByCommitment(commitment chain.Commitment) (chain.Hash, error)
	FetchKernel(kernelHash chain.Hash) (*KernelRecord, error)

	// ForEachUnspentOutput calls fn for every unspent output.
	ForEachUnspentOutput(fn func(*OutputRecord) error) error
	// ForEachKernel calls fn for every kernel.
	ForEachKernel(fn func(*KernelRecord) error) error
}
