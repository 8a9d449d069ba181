package validation

import (
	"github.com/tari-project/tari-core/consensus/rules"
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/storage"
)

// BlockValidator checks a full block extending the backend tip. The steps
// run in a fixed order: sequence, timestamp and difficulty (header), block
// structure, then the body internal and chain-linked checks. Nothing is
// written to the backend.
type BlockValidator struct {
	rules   *rules.Manager
	backend storage.ChainBackend
	headers *HeaderValidator
	body    *AggregateBodyValidator
}

var _ Validator[*chain.Block] = (*BlockValidator)(nil)

func NewBlockValidator(
	rules *rules.Manager,
	backend storage.ChainBackend,
	headers *HeaderValidator,
	body *AggregateBodyValidator,
) *BlockValidator {
	return &BlockValidator{
		rules:   rules,
		backend: backend,
		headers: headers,
		body:    body,
	}
}

// Validate implements Validator.
func (v *BlockValidator) Validate(block *chain.Block) error {
	_, err := v.ValidateBlock(block)
	return err
}

// ValidateBlock checks the block and returns it with its accumulated data.
// Expected errors are those of HeaderValidator.ValidateHeader and
// AggregateBodyValidator.Validate, plus InvalidBlockError for structural
// block rules.
func (v *BlockValidator) ValidateBlock(block *chain.Block) (*chain.ChainBlock, error) {
	header := &block.Header
	accumulated, err := v.headers.ValidateHeader(header)
	if err != nil {
		return nil, err
	}
	err = v.checkStructure(block)
	if err != nil {
		return nil, err
	}
	err = v.checkCoinbaseMaturity(block)
	if err != nil {
		return nil, err
	}

	reward := v.rules.BlockReward(header.Height)
	var prevHash *chain.Hash
	if !header.IsGenesis() {
		prevHash = &header.PrevHash
	}
	err = v.body.Validate(&block.Body, header.TotalKernelOffset, header.TotalScriptOffset, &reward, prevHash, header.Height)
	if err != nil {
		return nil, err
	}
	return &chain.ChainBlock{Block: block, AccumulatedData: *accumulated}, nil
}

// ValidateChainHeader checks a header without its body, as done by header
// sync, and returns it with its accumulated data.
func (v *BlockValidator) ValidateChainHeader(header *chain.BlockHeader) (*chain.ChainHeader, error) {
	accumulated, err := v.headers.ValidateHeader(header)
	if err != nil {
		return nil, err
	}
	return &chain.ChainHeader{Header: *header, AccumulatedData: *accumulated}, nil
}

// checkStructure verifies ordering and the Merkle roots and MMR sizes the
// header commits to.
func (v *BlockValidator) checkStructure(block *chain.Block) error {
	header := &block.Header
	body := &block.Body
	if !body.IsSorted() {
		return NewInvalidBlockErrorf(header.Height, "body is not sorted")
	}

	var prevOutputSize, prevKernelSize uint64
	if !header.IsGenesis() {
		prev, err := v.backend.HeaderByHash(header.PrevHash)
		if err != nil {
			return NewInfrastructureErrorf("could not read previous header: %w", err)
		}
		prevOutputSize, prevKernelSize = prev.OutputMMRSize, prev.KernelMMRSize
	}
	if header.OutputMMRSize != prevOutputSize+uint64(len(body.Outputs)) {
		return NewInvalidBlockErrorf(header.Height, "output MMR size %d, expected %d",
			header.OutputMMRSize, prevOutputSize+uint64(len(body.Outputs)))
	}
	if header.KernelMMRSize != prevKernelSize+uint64(len(body.Kernels)) {
		return NewInvalidBlockErrorf(header.Height, "kernel MMR size %d, expected %d",
			header.KernelMMRSize, prevKernelSize+uint64(len(body.Kernels)))
	}
	if root := chain.MerkleRoot(body.InputHashes()); root != header.InputMR {
		return NewInvalidBlockErrorf(header.Height, "input Merkle root %s, expected %s", header.InputMR, root)
	}
	if root := chain.MerkleRoot(body.OutputHashes()); root != header.OutputMR {
		return NewInvalidBlockErrorf(header.Height, "output Merkle root %s, expected %s", header.OutputMR, root)
	}
	if root := chain.MerkleRoot(body.KernelHashes()); root != header.KernelMR {
		return NewInvalidBlockErrorf(header.Height, "kernel Merkle root %s, expected %s", header.KernelMR, root)
	}
	return nil
}

func (v *BlockValidator) checkCoinbaseMaturity(block *chain.Block) error {
	lockHeight := v.rules.CoinbaseLockHeight(block.Header.Height)
	for _, output := range block.Body.CoinbaseOutputs() {
		if output.Features.Maturity < lockHeight {
			return NewInvalidBlockErrorf(block.Header.Height, "coinbase %s matures at %d, must be at least %d",
				output.Hash(), output.Features.Maturity, lockHeight)
		}
	}
	return nil
}
