package badger

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tari-project/tari-core/crypto"
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/module/irrecoverable"
	"github.com/tari-project/tari-core/module/metrics"
	"github.com/tari-project/tari-core/module/validation"
	"github.com/tari-project/tari-core/storage"
	"github.com/tari-project/tari-core/utils/unittest"
)

const testPeer = "peer-1"

func newBlockValidator(builder *unittest.ChainBuilder, store *ChainStore) *validation.BlockValidator {
	manager := builder.Rules()
	internal := validation.NewAggregateBodyInternalConsistencyValidator(manager, crypto.NewCommitmentFactory())
	body := validation.NewAggregateBodyValidator(internal, validation.NewAggregateBodyChainLinkedValidator(store))
	return validation.NewBlockValidator(manager, store, validation.NewHeaderValidator(manager, store), body)
}

func newDatabase(t *testing.T, db *badger.DB, builder *unittest.ChainBuilder) *BlockchainDatabase {
	store := NewChainStore(metrics.NewNoopCollector(), db)
	database, err := NewBlockchainDatabase(unittest.Logger(), metrics.NewNoopCollector(), store, newBlockValidator(builder, store))
	require.NoError(t, err)
	require.NoError(t, database.Bootstrap(builder.Block(0)))
	return database
}

func requireTip(t *testing.T, database *BlockchainDatabase, expected *chain.ChainBlock) {
	metadata, err := database.ChainMetadata()
	require.NoError(t, err)
	require.Equal(t, expected.Block.Header.Height, metadata.HeightOfLongestChain)
	require.Equal(t, expected.Hash(), metadata.BestBlock)
}

// heavierFork extends fork until it carries more work than main.
func heavierFork(t *testing.T, main, fork *unittest.ChainBuilder) {
	var choice validation.ForkChoice
	for i := 0; i < 64; i++ {
		fork.NextBlock()
		if choice.IsBetterChain(&main.Tip().AccumulatedData, &fork.Tip().AccumulatedData) {
			return
		}
	}
	require.Fail(t, "fork did not overtake the main chain")
}

func TestBlockchainDatabase_AddBlock(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		builder := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
		database := newDatabase(t, db, builder)

		faucet := builder.Spendable(1)[0]
		builder.NextBlock(builder.Spend([]unittest.SpendableOutput{faucet}, 600_000_000, 300_000_000))
		builder.ExtendBy(4)
		for _, block := range builder.Blocks()[1:] {
			result, err := database.AddBlock(block.Block, testPeer)
			require.NoError(t, err)
			assert.Equal(t, BlockAdded, result)
		}
		requireTip(t, database, builder.Tip())

		result, err := database.AddBlock(builder.Block(2).Block, testPeer)
		require.NoError(t, err)
		assert.Equal(t, BlockExists, result)

		stored, err := database.FetchBlock(1)
		require.NoError(t, err)
		assert.Equal(t, builder.Block(1).AccumulatedData, stored.AccumulatedData)
	})
}

func TestBlockchainDatabase_Bootstrap(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		builder := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
		database := newDatabase(t, db, builder)
		require.NoError(t, database.Bootstrap(builder.Block(0)))

		header := builder.Block(0).Block.Header
		header.Timestamp++
		other := &chain.ChainBlock{
			Block:           chain.NewBlock(header, builder.Block(0).Block.Body),
			AccumulatedData: chain.BlockHeaderAccumulatedData{Hash: header.Hash()},
		}
		require.Error(t, database.Bootstrap(other))
	})
}

func TestBlockchainDatabase_RejectsInvalidBlock(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		builder := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
		database := newDatabase(t, db, builder)
		next := builder.NextBlock()

		invalid := *next.Block
		invalid.Header.Height = 2
		_, err := database.AddBlock(&invalid, testPeer)
		require.Error(t, err)
		assert.True(t, validation.IsInvalidChainingError(err), "unexpected error: %v", err)
		requireTip(t, database, builder.Block(0))

		result, err := database.AddBlock(next.Block, testPeer)
		require.NoError(t, err)
		assert.Equal(t, BlockAdded, result)
	})
}

func TestBlockchainDatabase_ConnectsOrphans(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		builder := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
		database := newDatabase(t, db, builder)
		builder.ExtendBy(3)

		for _, height := range []uint64{3, 2} {
			result, err := database.AddBlock(builder.Block(height).Block, testPeer)
			require.NoError(t, err)
			assert.Equal(t, BlockOrphaned, result)
		}
		assert.Equal(t, 2, database.OrphanCount())

		result, err := database.AddBlock(builder.Block(1).Block, testPeer)
		require.NoError(t, err)
		assert.Equal(t, BlockAdded, result)
		requireTip(t, database, builder.Tip())
		assert.Equal(t, 0, database.OrphanCount())
	})
}

func TestBlockchainDatabase_Reorg(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		main := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
		database := newDatabase(t, db, main)
		main.ExtendBy(3)
		for _, block := range main.Blocks()[1:] {
			_, err := database.AddBlock(block.Block, testPeer)
			require.NoError(t, err)
		}

		fork := main.Fork(1)
		heavierFork(t, main, fork)

		reorged := false
		for _, block := range fork.Blocks()[2:] {
			result, err := database.AddBlock(block.Block, testPeer)
			require.NoError(t, err)
			if result == BlockReorg {
				reorged = true
			}
		}
		assert.True(t, reorged)
		requireTip(t, database, fork.Tip())

		// the replaced blocks are kept so that the chain can switch back
		for _, block := range main.Blocks()[2:] {
			result, err := database.AddBlock(block.Block, testPeer)
			require.NoError(t, err)
			assert.Equal(t, BlockExists, result)
		}
	})
}

func TestBlockchainDatabase_LighterForkIsKeptAsOrphan(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		builder := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
		database := newDatabase(t, db, builder)
		fork := builder.Fork(0)
		fork.ExtendBy(2)
		heavierFork(t, fork, builder)
		for _, block := range builder.Blocks()[1:] {
			_, err := database.AddBlock(block.Block, testPeer)
			require.NoError(t, err)
		}

		for _, block := range fork.Blocks()[1:] {
			result, err := database.AddBlock(block.Block, testPeer)
			require.NoError(t, err)
			assert.Equal(t, BlockOrphaned, result)
		}
		requireTip(t, database, builder.Tip())
	})
}

func TestBlockchainDatabase_ForkBelowPrunedHeight(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		main := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
		database := newDatabase(t, db, main)
		main.ExtendBy(3)
		for _, block := range main.Blocks()[1:] {
			_, err := database.AddBlock(block.Block, testPeer)
			require.NoError(t, err)
		}
		require.NoError(t, database.InsertHorizonState(&storage.HorizonState{Height: 2}))
		metadata, err := database.ChainMetadata()
		require.NoError(t, err)
		require.Equal(t, uint64(2), metadata.PrunedHeight)

		fork := main.Fork(1)
		heavierFork(t, main, fork)
		for _, block := range fork.Blocks()[2:] {
			result, err := database.AddBlock(block.Block, testPeer)
			require.NoError(t, err)
			assert.Equal(t, BlockOrphaned, result)
		}
		requireTip(t, database, main.Tip())
	})
}

func TestBlockchainDatabase_InvalidForkRestoresChain(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		main := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
		database := newDatabase(t, db, main)
		main.ExtendBy(2)
		for _, block := range main.Blocks()[1:] {
			_, err := database.AddBlock(block.Block, testPeer)
			require.NoError(t, err)
		}

		fork := main.Fork(0)
		heavierFork(t, main, fork)
		blocks := fork.Blocks()[1:]
		// same header, different body
		bad := *blocks[0].Block
		bad.Body.Kernels = append([]chain.TransactionKernel(nil), bad.Body.Kernels...)
		bad.Body.Kernels[0].Fee++

		var failures []error
		for i, block := range blocks {
			b := block.Block
			if i == 0 {
				b = &bad
			}
			_, err := database.AddBlock(b, testPeer)
			if err != nil {
				failures = append(failures, err)
			}
		}
		require.Len(t, failures, 1)
		assert.True(t, validation.IsInvalidBlockError(failures[0]), "unexpected error: %v", failures[0])
		requireTip(t, database, main.Tip())

		for _, expected := range main.Blocks() {
			stored, err := database.FetchBlock(expected.Block.Header.Height)
			require.NoError(t, err)
			assert.Equal(t, expected.Hash(), stored.Hash())
		}
	})
}

// nilBlockValidator returns a chain block without a block, which makes the
// store panic while applying it.
type nilBlockValidator struct{}

func (nilBlockValidator) ValidateBlock(*chain.Block) (*chain.ChainBlock, error) {
	return &chain.ChainBlock{}, nil
}

func (nilBlockValidator) ValidateChainHeader(*chain.BlockHeader) (*chain.ChainHeader, error) {
	return &chain.ChainHeader{}, nil
}

func TestBlockchainDatabase_PanicPoisons(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		builder := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
		store := NewChainStore(metrics.NewNoopCollector(), db)
		database, err := NewBlockchainDatabase(unittest.Logger(), metrics.NewNoopCollector(), store, nilBlockValidator{})
		require.NoError(t, err)
		require.NoError(t, database.Bootstrap(builder.Block(0)))

		next := builder.NextBlock()
		_, err = database.AddBlock(next.Block, testPeer)
		require.Error(t, err)
		assert.True(t, irrecoverable.IsException(err))
		assert.True(t, errors.Is(err, ErrPoisoned))

		_, err = database.AddBlock(next.Block, testPeer)
		assert.ErrorIs(t, err, ErrPoisoned)
		requireTip(t, database, builder.Block(0))
	})
}
