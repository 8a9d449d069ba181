package badger

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/tari-project/tari-core/consensus/pow"
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/module"
	"github.com/tari-project/tari-core/module/irrecoverable"
	"github.com/tari-project/tari-core/module/validation"
	"github.com/tari-project/tari-core/storage"
)

const defaultOrphanPoolSize = 720

// BlockAddResult is the outcome of adding a block to the chain.
type BlockAddResult int

const (
	BlockAdded BlockAddResult = iota
	BlockExists
	BlockOrphaned
	BlockReorg
)

func (r BlockAddResult) String() string {
	switch r {
	case BlockAdded:
		return "added"
	case BlockExists:
		return "duplicate"
	case BlockOrphaned:
		return "orphaned"
	case BlockReorg:
		return "reorg"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// ErrPoisoned is returned by every write after an apply panicked.
var ErrPoisoned = errors.New("blockchain database is poisoned")

// BlockValidator validates a block, or a header alone, against the current
// tip of the store and returns it with its accumulated data.
type BlockValidator interface {
	ValidateBlock(block *chain.Block) (*chain.ChainBlock, error)
	ValidateChainHeader(header *chain.BlockHeader) (*chain.ChainHeader, error)
}

// BlockchainDatabase adds blocks to a ChainStore. Adds are serialised; a
// candidate block is validated under the read lock and applied under the
// write lock. Blocks that do not extend the tip are kept in an orphan pool
// until they form a fork with strictly more accumulated work than the main
// chain, which triggers a reorg.
type BlockchainDatabase struct {
	log       zerolog.Logger
	metrics   module.ChainMetrics
	store     *ChainStore
	validator BlockValidator
	choice    validation.ForkChoice
	orphans   *lru.Cache[chain.Hash, *chain.Block]

	applyMu  sync.Mutex
	mu       sync.RWMutex
	poisoned *atomic.Bool
}

// NewBlockchainDatabase returns a database over store. The validator must
// read from the same store.
func NewBlockchainDatabase(
	log zerolog.Logger,
	metrics module.ChainMetrics,
	store *ChainStore,
	validator BlockValidator,
) (*BlockchainDatabase, error) {
	orphans, err := lru.New[chain.Hash, *chain.Block](defaultOrphanPoolSize)
	if err != nil {
		return nil, fmt.Errorf("could not create orphan pool: %w", err)
	}
	return &BlockchainDatabase{
		log:       log.With().Str("component", "blockchain_db").Logger(),
		metrics:   metrics,
		store:     store,
		validator: validator,
		orphans:   orphans,
		poisoned:  atomic.NewBool(false),
	}, nil
}

// Bootstrap stores the genesis block of an empty database without
// validating it. On a non-empty database it checks that the stored genesis
// matches.
func (d *BlockchainDatabase) Bootstrap(genesis *chain.ChainBlock) error {
	d.applyMu.Lock()
	defer d.applyMu.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	empty, err := d.store.IsEmpty()
	if err != nil {
		return fmt.Errorf("could not check for an empty chain: %w", err)
	}
	if !empty {
		stored, err := d.store.HeaderByHeight(0)
		if err != nil {
			return fmt.Errorf("could not read stored genesis: %w", err)
		}
		if stored.Hash() != genesis.Hash() {
			return fmt.Errorf("stored genesis %s does not match %s", stored.Hash(), genesis.Hash())
		}
		return nil
	}
	err = d.store.ApplyBlock(genesis)
	if err != nil {
		return fmt.Errorf("could not store genesis block: %w", err)
	}
	d.metrics.ChainTip(0)
	d.log.Info().Str("block_id", genesis.Hash().String()).Msg("genesis block stored")
	return nil
}

// ChainMetadata returns the current tip.
func (d *BlockchainDatabase) ChainMetadata() (*chain.ChainMetadata, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.ChainMetadata()
}

// FetchBlock returns the main-chain block at height.
func (d *BlockchainDatabase) FetchBlock(height uint64) (*chain.ChainBlock, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.Block(height)
}

// FetchHeader returns the main-chain header at height.
func (d *BlockchainDatabase) FetchHeader(height uint64) (*chain.BlockHeader, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.HeaderByHeight(height)
}

// FetchHorizonState returns the output and kernel changes of the main-chain
// blocks from height from to height to.
func (d *BlockchainDatabase) FetchHorizonState(from, to uint64) (*storage.HorizonState, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.HorizonState(from, to)
}

// AddHeader validates a header extending the tip and appends it without a
// body. Blocks below the horizon of a horizon sync are added this way.
//
// Expected errors during normal operations:
//   - validation errors (see module/validation) if the header is invalid;
//     nothing is stored in that case
func (d *BlockchainDatabase) AddHeader(header *chain.BlockHeader, peer string) error {
	if d.poisoned.Load() {
		return irrecoverable.NewException(ErrPoisoned)
	}
	d.applyMu.Lock()
	defer d.applyMu.Unlock()

	d.mu.RLock()
	validated, err := d.validator.ValidateChainHeader(header)
	d.mu.RUnlock()
	if err != nil {
		d.reject(d.log.With().Uint64("height", header.Height).Str("peer_id", peer).Logger(), err)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	err = d.store.InsertChainHeader(validated)
	if err != nil {
		return fmt.Errorf("could not insert header #%d: %w", header.Height, err)
	}
	d.metrics.ChainTip(header.Height)
	return nil
}

// InsertHorizonState applies a horizon state downloaded for the headers
// already added with AddHeader.
func (d *BlockchainDatabase) InsertHorizonState(state *storage.HorizonState) error {
	if d.poisoned.Load() {
		return irrecoverable.NewException(ErrPoisoned)
	}
	d.applyMu.Lock()
	defer d.applyMu.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.InsertHorizonState(state)
}

// RewindToHeight removes the main-chain blocks above height. The removed
// blocks are not kept as orphans.
func (d *BlockchainDatabase) RewindToHeight(height uint64) error {
	if d.poisoned.Load() {
		return irrecoverable.NewException(ErrPoisoned)
	}
	d.applyMu.Lock()
	defer d.applyMu.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	removed, err := d.store.RewindToHeight(height)
	if err != nil {
		return fmt.Errorf("could not rewind to height %d: %w", height, err)
	}
	d.metrics.ChainTip(height)
	d.log.Info().Uint64("height", height).Int("removed", len(removed)).Msg("rewound chain")
	return nil
}

// OrphanCount returns the number of blocks in the orphan pool.
func (d *BlockchainDatabase) OrphanCount() int {
	return d.orphans.Len()
}

// AddBlock adds a block received from peer.
//
// Expected errors during normal operations:
//   - validation errors (see module/validation) if the block is invalid;
//     nothing is stored in that case
//
// An error wrapping ErrPoisoned is an irrecoverable exception.
func (d *BlockchainDatabase) AddBlock(block *chain.Block, peer string) (BlockAddResult, error) {
	if d.poisoned.Load() {
		return 0, irrecoverable.NewException(ErrPoisoned)
	}
	d.applyMu.Lock()
	defer d.applyMu.Unlock()

	result, err := d.addBlock(block, peer)
	if err != nil {
		return result, err
	}
	d.metrics.BlockAdded(result.String())
	d.metrics.OrphanPoolSize(uint(d.orphans.Len()))
	return result, nil
}

func (d *BlockchainDatabase) addBlock(block *chain.Block, peer string) (BlockAddResult, error) {
	hash := block.Hash()
	log := d.log.With().
		Str("block_id", hash.String()).
		Uint64("height", block.Header.Height).
		Str("peer_id", peer).
		Logger()

	if d.orphans.Contains(hash) {
		return BlockExists, nil
	}
	known, err := d.store.HasHeader(hash)
	if err != nil {
		return 0, fmt.Errorf("could not look up block: %w", err)
	}
	if known {
		return BlockExists, nil
	}

	metadata, err := d.store.ChainMetadata()
	if err != nil {
		return 0, fmt.Errorf("could not read chain tip: %w", err)
	}

	if block.Header.PrevHash != metadata.BestBlock {
		d.orphans.Add(hash, block)
		log.Debug().Msg("block does not extend the tip, added to orphan pool")
		return d.tryReorg(block, peer)
	}

	validated, err := d.validate(block)
	if err != nil {
		d.reject(log, err)
		return 0, err
	}
	err = d.apply(validated)
	if err != nil {
		return 0, err
	}
	log.Debug().Msg("block added")
	err = d.connectOrphans(peer)
	if err != nil {
		return 0, err
	}
	return BlockAdded, nil
}

func (d *BlockchainDatabase) validate(block *chain.Block) (*chain.ChainBlock, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.validator.ValidateBlock(block)
}

// apply stores a validated block. A panic while writing poisons the
// database.
func (d *BlockchainDatabase) apply(block *chain.ChainBlock) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyLocked(block)
}

func (d *BlockchainDatabase) applyLocked(block *chain.ChainBlock) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.poisoned.Store(true)
			err = irrecoverable.NewExceptionf("panic applying block %s: %v: %w", block.AccumulatedData.Hash, r, ErrPoisoned)
		}
	}()
	err = d.store.ApplyBlock(block)
	if err != nil {
		return fmt.Errorf("could not apply block #%d: %w", block.Block.Header.Height, err)
	}
	d.metrics.ChainTip(block.Block.Header.Height)
	return nil
}

func (d *BlockchainDatabase) reject(log zerolog.Logger, err error) {
	if validation.IsInfrastructureError(err) {
		log.Error().Err(err).Msg("could not validate block")
		return
	}
	log.Warn().Err(err).Str("error_kind", validation.ErrorKind(err)).Msg("rejected block")
}

// connectOrphans applies orphans that extend the new tip.
func (d *BlockchainDatabase) connectOrphans(peer string) error {
	for {
		metadata, err := d.store.ChainMetadata()
		if err != nil {
			return fmt.Errorf("could not read chain tip: %w", err)
		}
		next, ok := d.childOf(metadata.BestBlock)
		if !ok {
			return nil
		}
		hash := next.Hash()
		d.orphans.Remove(hash)
		validated, err := d.validate(next)
		if err != nil {
			d.reject(d.log.With().Str("block_id", hash.String()).Str("peer_id", peer).Logger(), err)
			if validation.IsInfrastructureError(err) {
				return err
			}
			return nil
		}
		err = d.apply(validated)
		if err != nil {
			return err
		}
	}
}

func (d *BlockchainDatabase) childOf(parent chain.Hash) (*chain.Block, bool) {
	for _, hash := range d.orphans.Keys() {
		block, ok := d.orphans.Peek(hash)
		if ok && block.Header.PrevHash == parent {
			return block, true
		}
	}
	return nil, false
}

// forkOf returns the orphan chain containing block, ordered from the fork
// point upwards, and the main-chain header it forks from. It returns false
// if the chain does not connect to the main chain.
func (d *BlockchainDatabase) forkOf(block *chain.Block) ([]*chain.Block, *chain.BlockHeader, bool, error) {
	var fork []*chain.Block
	for current := block; ; {
		fork = append([]*chain.Block{current}, fork...)
		header, err := d.store.HeaderByHash(current.Header.PrevHash)
		if err == nil {
			// extend the fork with the orphans built on top of block
			for tip := block; ; {
				child, ok := d.childOf(tip.Hash())
				if !ok {
					break
				}
				fork = append(fork, child)
				tip = child
			}
			return fork, header, true, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, false, fmt.Errorf("could not look up fork parent: %w", err)
		}
		parent, ok := d.orphans.Peek(current.Header.PrevHash)
		if !ok {
			return nil, nil, false, nil
		}
		current = parent
	}
}

// tryReorg switches to the fork containing block if it carries strictly
// more accumulated proof of work than the main chain.
func (d *BlockchainDatabase) tryReorg(block *chain.Block, peer string) (BlockAddResult, error) {
	fork, forkPoint, ok, err := d.forkOf(block)
	if err != nil {
		return 0, err
	}
	if !ok {
		return BlockOrphaned, nil
	}

	metadata, err := d.store.ChainMetadata()
	if err != nil {
		return 0, fmt.Errorf("could not read chain tip: %w", err)
	}
	current, err := d.store.HeaderAccumulatedData(metadata.BestBlock)
	if err != nil {
		return 0, fmt.Errorf("could not read tip accumulated data: %w", err)
	}
	if forkPoint.Height < metadata.PrunedHeight {
		// blocks below the horizon have no bodies to rewind or replay
		d.log.Warn().
			Str("block_id", block.Hash().String()).
			Uint64("fork_height", forkPoint.Height).
			Uint64("pruned_height", metadata.PrunedHeight).
			Str("peer_id", peer).
			Msg("fork below the pruned horizon kept as orphan")
		return BlockOrphaned, nil
	}
	candidate, err := d.store.HeaderAccumulatedData(forkPoint.Hash())
	if err != nil {
		return 0, fmt.Errorf("could not read fork point accumulated data: %w", err)
	}
	candidate, ok = estimateAccumulated(candidate, fork)
	if !ok || !d.choice.IsBetterChain(current, candidate) {
		return BlockOrphaned, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reorg(forkPoint.Height, fork, peer)
}

// estimateAccumulated adds the achieved difficulty of each fork block to
// the accumulated data of the fork point. It returns false if a block has
// invalid proof of work.
func estimateAccumulated(data *chain.BlockHeaderAccumulatedData, fork []*chain.Block) (*chain.BlockHeaderAccumulatedData, bool) {
	estimate := *data
	var ok bool
	for _, block := range fork {
		achieved, err := pow.AchievedDifficulty(&block.Header)
		if err != nil {
			return nil, false
		}
		switch block.Header.Pow.Algo {
		case chain.PowAlgoBlake2bd:
			estimate.AccumulatedBlake2bdDifficulty, ok = estimate.AccumulatedBlake2bdDifficulty.CheckedAdd(achieved)
		default:
			estimate.AccumulatedSha3xDifficulty, ok = estimate.AccumulatedSha3xDifficulty.CheckedAdd(achieved)
		}
		if !ok {
			return nil, false
		}
	}
	return &estimate, true
}

// reorg rewinds the main chain to height and applies fork. If a fork block
// is invalid the original chain is restored. The caller holds the write
// lock.
func (d *BlockchainDatabase) reorg(height uint64, fork []*chain.Block, peer string) (BlockAddResult, error) {
	removed, err := d.store.RewindToHeight(height)
	if err != nil {
		d.poisoned.Store(true)
		return 0, irrecoverable.NewExceptionf("could not rewind to height %d: %v: %w", height, err, ErrPoisoned)
	}

	for i, block := range fork {
		validated, err := d.validator.ValidateBlock(block)
		if err != nil {
			d.reject(d.log.With().
				Str("block_id", block.Hash().String()).
				Uint64("height", block.Header.Height).
				Str("peer_id", peer).
				Logger(), err)
			for _, invalid := range fork[i:] {
				d.orphans.Remove(invalid.Hash())
			}
			restoreErr := d.restore(height, removed)
			if restoreErr != nil {
				return 0, restoreErr
			}
			return 0, err
		}
		err = d.applyLocked(validated)
		if err != nil {
			return 0, err
		}
		d.orphans.Remove(block.Hash())
	}

	for _, block := range removed {
		d.orphans.Add(block.Hash(), block)
	}
	d.metrics.Reorg(uint64(len(removed)))
	d.log.Info().
		Uint64("fork_height", height).
		Int("removed", len(removed)).
		Int("added", len(fork)).
		Msg("chain reorganised")
	return BlockReorg, nil
}

// restore rewinds a partially applied fork and re-applies the removed main
// chain blocks, which are given tip first.
func (d *BlockchainDatabase) restore(height uint64, removed []*chain.Block) error {
	_, err := d.store.RewindToHeight(height)
	if err != nil {
		d.poisoned.Store(true)
		return irrecoverable.NewExceptionf("could not rewind failed fork: %v: %w", err, ErrPoisoned)
	}
	for i := len(removed) - 1; i >= 0; i-- {
		validated, err := d.validator.ValidateBlock(removed[i])
		if err == nil {
			err = d.applyLocked(validated)
		}
		if err != nil {
			d.poisoned.Store(true)
			return irrecoverable.NewExceptionf("could not restore block #%d: %v: %w", removed[i].Header.Height, err, ErrPoisoned)
		}
	}
	return nil
}
