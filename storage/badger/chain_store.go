package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/module"
	"github.com/tari-project/tari-core/module/metrics"
	"github.com/tari-project/tari-core/storage"
	"github.com/tari-project/tari-core/storage/badger/operation"
)

const defaultHeaderCacheSize = 1000

// ChainStore persists the base-layer chain: headers, accumulated data, block
// bodies, the output set with spent markers, kernels and the chain tip.
// Writes are whole-block transactions so a crash never leaves a partially
// applied block behind.
type ChainStore struct {
	db          *badger.DB
	headers     *Cache[chain.Hash, *chain.BlockHeader]
	accumulated *Cache[chain.Hash, *chain.BlockHeaderAccumulatedData]
}

var _ storage.ChainBackend = (*ChainStore)(nil)

// NewChainStore returns a chain store on the given database.
func NewChainStore(collector module.CacheMetrics, db *badger.DB) *ChainStore {
	retrieveHeader := func(hash chain.Hash) (*chain.BlockHeader, error) {
		var header chain.BlockHeader
		err := db.View(operation.RetrieveHeader(hash, &header))
		return &header, err
	}
	retrieveAccumulated := func(hash chain.Hash) (*chain.BlockHeaderAccumulatedData, error) {
		var data chain.BlockHeaderAccumulatedData
		err := db.View(operation.RetrieveAccumulatedData(hash, &data))
		return &data, err
	}
	return &ChainStore{
		db: db,
		headers: newCache[chain.Hash, *chain.BlockHeader](collector,
			withLimit[chain.Hash, *chain.BlockHeader](defaultHeaderCacheSize),
			withRetrieve(retrieveHeader),
			withResource[chain.Hash, *chain.BlockHeader](metrics.ResourceHeader)),
		accumulated: newCache[chain.Hash, *chain.BlockHeaderAccumulatedData](collector,
			withLimit[chain.Hash, *chain.BlockHeaderAccumulatedData](defaultHeaderCacheSize),
			withRetrieve(retrieveAccumulated),
			withResource[chain.Hash, *chain.BlockHeaderAccumulatedData](metrics.ResourceAccumulatedData)),
	}
}

// IsEmpty returns true if no genesis block has been stored.
func (s *ChainStore) IsEmpty() (bool, error) {
	_, err := s.ChainMetadata()
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *ChainStore) ChainMetadata() (*chain.ChainMetadata, error) {
	var metadata chain.ChainMetadata
	err := s.db.View(operation.RetrieveChainMetadata(&metadata))
	if err != nil {
		return nil, err
	}
	return &metadata, nil
}

func (s *ChainStore) HeaderByHash(hash chain.Hash) (*chain.BlockHeader, error) {
	header, err := s.headers.Get(hash)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve header %s: %w", hash, err)
	}
	return header, nil
}

// HasHeader returns whether a header with the given hash is stored,
// bypassing the header cache.
func (s *ChainStore) HasHeader(hash chain.Hash) (bool, error) {
	var found bool
	err := s.db.View(operation.CheckHeader(hash, &found))
	if err != nil {
		return false, fmt.Errorf("could not check header %s: %w", hash, err)
	}
	return found, nil
}

func (s *ChainStore) HeaderByHeight(height uint64) (*chain.BlockHeader, error) {
	var hash chain.Hash
	err := s.db.View(operation.LookupHeaderHeight(height, &hash))
	if err != nil {
		return nil, fmt.Errorf("could not look up header at height %d: %w", height, err)
	}
	return s.HeaderByHash(hash)
}

func (s *ChainStore) HeaderAccumulatedData(hash chain.Hash) (*chain.BlockHeaderAccumulatedData, error) {
	data, err := s.accumulated.Get(hash)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve accumulated data of %s: %w", hash, err)
	}
	return data, nil
}

func (s *ChainStore) ChainHeaderByHeight(height uint64) (*chain.ChainHeader, error) {
	header, err := s.HeaderByHeight(height)
	if err != nil {
		return nil, err
	}
	data, err := s.HeaderAccumulatedData(header.Hash())
	if err != nil {
		return nil, err
	}
	return &chain.ChainHeader{Header: *header, AccumulatedData: *data}, nil
}

func (s *ChainStore) BlockBody(hash chain.Hash) (*chain.AggregateBody, error) {
	var body chain.AggregateBody
	err := s.db.View(operation.RetrieveBlockBody(hash, &body))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve body of %s: %w", hash, err)
	}
	return &body, nil
}

// Block returns a canonical block with its accumulated data.
func (s *ChainStore) Block(height uint64) (*chain.ChainBlock, error) {
	header, err := s.ChainHeaderByHeight(height)
	if err != nil {
		return nil, err
	}
	body, err := s.BlockBody(header.Hash())
	if err != nil {
		return nil, err
	}
	return &chain.ChainBlock{
		Block:           chain.NewBlock(header.Header, *body),
		AccumulatedData: header.AccumulatedData,
	}, nil
}

func (s *ChainStore) FetchOutput(outputHash chain.Hash) (*storage.OutputRecord, error) {
	var record storage.OutputRecord
	err := s.db.View(operation.RetrieveOutput(outputHash, &record))
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *ChainStore) IsSpent(outputHash chain.Hash) (bool, error) {
	var spent bool
	err := s.db.View(operation.CheckSpent(outputHash, &spent))
	return spent, err
}

func (s *ChainStore) OutputHashByCommitment(commitment chain.Commitment) (chain.Hash, error) {
	var hash chain.Hash
	err := s.db.View(operation.LookupOutputByCommitment(commitment, &hash))
	return hash, err
}

func (s *ChainStore) FetchKernel(kernelHash chain.Hash) (*storage.KernelRecord, error) {
	var record storage.KernelRecord
	err := s.db.View(operation.RetrieveKernel(kernelHash, &record))
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *ChainStore) ForEachUnspentOutput(fn func(*storage.OutputRecord) error) error {
	return s.db.View(func(tx *badger.Txn) error {
		return operation.TraverseOutputs(func(record *storage.OutputRecord) error {
			var spent bool
			err := operation.CheckSpent(record.Output.Hash(), &spent)(tx)
			if err != nil {
				return err
			}
			if spent {
				return nil
			}
			return fn(record)
		})(tx)
	})
}

func (s *ChainStore) ForEachKernel(fn func(*storage.KernelRecord) error) error {
	return s.db.View(operation.TraverseKernels(fn))
}

// upsertTip moves the chain tip to header. The pruned height is carried
// over and lowered to the new tip height on a rewind below it.
func upsertTip(header *chain.BlockHeader, data *chain.BlockHeaderAccumulatedData) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var current chain.ChainMetadata
		err := operation.RetrieveChainMetadata(&current)(tx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not read chain tip: %w", err)
		}
		pruned := current.PrunedHeight
		if pruned > header.Height {
			pruned = header.Height
		}
		return operation.UpsertChainMetadata(&chain.ChainMetadata{
			HeightOfLongestChain:  header.Height,
			BestBlock:             data.Hash,
			AccumulatedDifficulty: data.TotalAccumulatedDifficulty().Bytes32(),
			PrunedHeight:          pruned,
		})(tx)
	}
}

func insertHeaderTx(header *chain.BlockHeader, data *chain.BlockHeaderAccumulatedData) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := operation.InsertHeader(data.Hash, header)(tx)
		if err != nil {
			return fmt.Errorf("could not insert header: %w", err)
		}
		err = operation.InsertAccumulatedData(data)(tx)
		if err != nil {
			return fmt.Errorf("could not insert accumulated data: %w", err)
		}
		err = operation.IndexHeaderHeight(header.Height, data.Hash)(tx)
		if err != nil {
			return fmt.Errorf("could not index header height: %w", err)
		}
		return upsertTip(header, data)(tx)
	}
}

// InsertChainHeader appends a header without a body as the new tip. Used by
// header sync, where bodies below the horizon are never downloaded.
func (s *ChainStore) InsertChainHeader(header *chain.ChainHeader) error {
	err := operation.RetryOnConflict(s.db.Update, insertHeaderTx(&header.Header, &header.AccumulatedData))
	if err != nil {
		return fmt.Errorf("could not insert chain header #%d: %w", header.Header.Height, err)
	}
	s.headers.Insert(header.AccumulatedData.Hash, &header.Header)
	s.accumulated.Insert(header.AccumulatedData.Hash, &header.AccumulatedData)
	return nil
}

// ApplyBlock appends a validated block as the new tip in one transaction.
func (s *ChainStore) ApplyBlock(block *chain.ChainBlock) error {
	header := &block.Block.Header
	data := &block.AccumulatedData
	body := &block.Block.Body
	err := operation.RetryOnConflict(s.db.Update, func(tx *badger.Txn) error {
		err := insertHeaderTx(header, data)(tx)
		if err != nil {
			return err
		}
		err = operation.InsertBlockBody(data.Hash, body)(tx)
		if err != nil {
			return fmt.Errorf("could not insert block body: %w", err)
		}
		for i := range body.Outputs {
			// burned outputs never enter the output set
			if body.Outputs[i].IsBurned() {
				continue
			}
			err = operation.InsertOutput(&storage.OutputRecord{
				Output:      body.Outputs[i],
				MinedHeight: header.Height,
				HeaderHash:  data.Hash,
			})(tx)
			if err != nil {
				return fmt.Errorf("could not insert output %s: %w", body.Outputs[i].Hash(), err)
			}
		}
		for i := range body.Inputs {
			hash := body.Inputs[i].OutputHash()
			err = operation.InsertSpent(hash, &storage.SpentRecord{SpentHeight: header.Height, HeaderHash: data.Hash})(tx)
			if err != nil {
				return fmt.Errorf("could not mark output %s as spent: %w", hash, err)
			}
			err = operation.RemoveCommitmentIndex(body.Inputs[i].Commitment)(tx)
			if err != nil {
				return fmt.Errorf("could not unindex spent output %s: %w", hash, err)
			}
		}
		for i := range body.Kernels {
			err = operation.InsertKernel(&storage.KernelRecord{
				Kernel:      body.Kernels[i],
				MinedHeight: header.Height,
				HeaderHash:  data.Hash,
			})(tx)
			if err != nil {
				return fmt.Errorf("could not insert kernel %s: %w", body.Kernels[i].Hash(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not apply block #%d: %w", header.Height, err)
	}
	s.headers.Insert(data.Hash, header)
	s.accumulated.Insert(data.Hash, data)
	return nil
}

// HorizonState returns the change to the output and kernel sets made by the
// main-chain blocks from height from to height to, both inclusive.
func (s *ChainStore) HorizonState(from, to uint64) (*storage.HorizonState, error) {
	if from > to {
		return nil, fmt.Errorf("invalid horizon range [%d, %d]", from, to)
	}
	inRange := func(height uint64) bool { return height >= from && height <= to }

	state := &storage.HorizonState{Height: to}
	err := s.db.View(func(tx *badger.Txn) error {
		err := operation.TraverseOutputs(func(record *storage.OutputRecord) error {
			if record.MinedHeight > to {
				return nil
			}
			hash := record.Output.Hash()
			var spent storage.SpentRecord
			err := operation.RetrieveSpent(hash, &spent)(tx)
			unspent := errors.Is(err, storage.ErrNotFound)
			if err != nil && !unspent {
				return fmt.Errorf("could not read spent marker of %s: %w", hash, err)
			}
			spentInRange := !unspent && spent.SpentHeight <= to
			switch {
			case record.MinedHeight >= from && !spentInRange:
				state.Outputs = append(state.Outputs, *record)
			case record.MinedHeight < from && spentInRange && spent.SpentHeight >= from:
				state.Spent = append(state.Spent, storage.SpentOutput{
					OutputHash: hash,
					Commitment: record.Output.Commitment,
					Spent:      spent,
				})
			}
			return nil
		})(tx)
		if err != nil {
			return fmt.Errorf("could not collect horizon outputs: %w", err)
		}
		return operation.TraverseKernels(func(record *storage.KernelRecord) error {
			if inRange(record.MinedHeight) {
				state.Kernels = append(state.Kernels, *record)
			}
			return nil
		})(tx)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// InsertHorizonState applies the output and kernel changes downloaded by a
// horizon sync, for a chain whose bodies are not stored, in one transaction.
// The chain's pruned height is raised to the state's height.
func (s *ChainStore) InsertHorizonState(state *storage.HorizonState) error {
	return operation.RetryOnConflict(s.db.Update, func(tx *badger.Txn) error {
		for i := range state.Outputs {
			err := operation.InsertOutput(&state.Outputs[i])(tx)
			if err != nil {
				return fmt.Errorf("could not insert horizon output: %w", err)
			}
		}
		for i := range state.Spent {
			spent := &state.Spent[i]
			err := operation.InsertSpent(spent.OutputHash, &spent.Spent)(tx)
			if err != nil {
				return fmt.Errorf("could not mark output %s as spent: %w", spent.OutputHash, err)
			}
			err = operation.RemoveCommitmentIndex(spent.Commitment)(tx)
			if err != nil {
				return fmt.Errorf("could not unindex spent output %s: %w", spent.OutputHash, err)
			}
		}
		for i := range state.Kernels {
			err := operation.InsertKernel(&state.Kernels[i])(tx)
			if err != nil {
				return fmt.Errorf("could not insert horizon kernel: %w", err)
			}
		}
		var metadata chain.ChainMetadata
		err := operation.RetrieveChainMetadata(&metadata)(tx)
		if err != nil {
			return fmt.Errorf("could not read chain tip: %w", err)
		}
		if state.Height > metadata.HeightOfLongestChain {
			return fmt.Errorf("horizon height %d is above the tip at %d", state.Height, metadata.HeightOfLongestChain)
		}
		if state.Height > metadata.PrunedHeight {
			metadata.PrunedHeight = state.Height
		}
		return operation.UpsertChainMetadata(&metadata)(tx)
	})
}

// RewindTip removes the tip block and restores the output set to the state
// before it. It returns the removed block. The genesis block cannot be
// removed.
func (s *ChainStore) RewindTip() (*chain.Block, error) {
	metadata, err := s.ChainMetadata()
	if err != nil {
		return nil, fmt.Errorf("could not read chain tip: %w", err)
	}
	if metadata.HeightOfLongestChain == 0 {
		return nil, fmt.Errorf("cannot rewind the genesis block")
	}
	tipHash := metadata.BestBlock
	header, err := s.HeaderByHash(tipHash)
	if err != nil {
		return nil, err
	}
	parent, err := s.HeaderAccumulatedData(header.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("could not read parent of tip: %w", err)
	}
	parentHeader, err := s.HeaderByHash(header.PrevHash)
	if err != nil {
		return nil, err
	}

	var body chain.AggregateBody
	err = operation.RetryOnConflict(s.db.Update, func(tx *badger.Txn) error {
		err := operation.RetrieveBlockBody(tipHash, &body)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			// header-only tip
			body = chain.AggregateBody{}
		} else if err != nil {
			return err
		} else {
			for i := range body.Inputs {
				hash := body.Inputs[i].OutputHash()
				err = operation.RemoveSpent(hash)(tx)
				if err != nil {
					return fmt.Errorf("could not unspend output %s: %w", hash, err)
				}
				err = operation.IndexCommitment(body.Inputs[i].Commitment, hash)(tx)
				if err != nil {
					return fmt.Errorf("could not reindex output %s: %w", hash, err)
				}
			}
			for i := range body.Outputs {
				if body.Outputs[i].IsBurned() {
					continue
				}
				err = operation.RemoveOutput(body.Outputs[i].Hash(), body.Outputs[i].Commitment)(tx)
				if err != nil {
					return fmt.Errorf("could not remove output: %w", err)
				}
			}
			for i := range body.Kernels {
				err = operation.RemoveKernel(body.Kernels[i].Hash())(tx)
				if err != nil {
					return fmt.Errorf("could not remove kernel: %w", err)
				}
			}
			err = operation.RemoveBlockBody(tipHash)(tx)
			if err != nil {
				return err
			}
		}
		err = operation.RemoveHeaderHeight(header.Height)(tx)
		if err != nil {
			return err
		}
		err = operation.RemoveAccumulatedData(tipHash)(tx)
		if err != nil {
			return err
		}
		err = operation.RemoveHeader(tipHash)(tx)
		if err != nil {
			return err
		}
		return upsertTip(parentHeader, parent)(tx)
	})
	if err != nil {
		return nil, fmt.Errorf("could not rewind block #%d: %w", header.Height, err)
	}
	s.headers.Remove(tipHash)
	s.accumulated.Remove(tipHash)
	return chain.NewBlock(*header, body), nil
}

// RewindToHeight removes blocks from the tip down to, but excluding, height.
// The removed blocks are returned tip first.
func (s *ChainStore) RewindToHeight(height uint64) ([]*chain.Block, error) {
	metadata, err := s.ChainMetadata()
	if err != nil {
		return nil, err
	}
	var removed []*chain.Block
	for tip := metadata.HeightOfLongestChain; tip > height; tip-- {
		block, err := s.RewindTip()
		if err != nil {
			return removed, err
		}
		removed = append(removed, block)
	}
	return removed, nil
}
