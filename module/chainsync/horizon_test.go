package chainsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/tari-project/tari-core/crypto"
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/module/chainsync"
	"github.com/tari-project/tari-core/module/metrics"
	"github.com/tari-project/tari-core/module/validation"
	"github.com/tari-project/tari-core/storage"
	bstorage "github.com/tari-project/tari-core/storage/badger"
	"github.com/tari-project/tari-core/utils/unittest"
)

const testPeer = "peer-1"

type node struct {
	store    *bstorage.ChainStore
	database *bstorage.BlockchainDatabase
}

func newNode(t *testing.T, builder *unittest.ChainBuilder) *node {
	manager := builder.Rules()
	store := bstorage.NewChainStore(metrics.NewNoopCollector(), unittest.InMemoryBadgerDB(t))
	internal := validation.NewAggregateBodyInternalConsistencyValidator(manager, builder.CommitmentFactory())
	body := validation.NewAggregateBodyValidator(internal, validation.NewAggregateBodyChainLinkedValidator(store))
	validator := validation.NewBlockValidator(manager, store, validation.NewHeaderValidator(manager, store), body)
	database, err := bstorage.NewBlockchainDatabase(unittest.Logger(), metrics.NewNoopCollector(), store, validator)
	require.NoError(t, err)
	require.NoError(t, database.Bootstrap(builder.Block(0)))
	return &node{store: store, database: database}
}

// remoteChain returns a peer holding n >= 2 blocks. Block 1 spends the
// genesis faucet and block 2 spends one of the outputs of block 1.
func remoteChain(t *testing.T, n int) (*unittest.ChainBuilder, *node) {
	builder := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
	faucet := builder.Spendable(1)[0]
	first := builder.Spend([]unittest.SpendableOutput{faucet}, 500_000_000, 250_000_000)
	builder.NextBlock(first)
	builder.NextBlock(builder.Spend(first.Outputs[1:], 100_000_000))
	builder.ExtendBy(n - 2)

	remote := newNode(t, builder)
	for _, block := range builder.Blocks()[1:] {
		_, err := remote.database.AddBlock(block.Block, testPeer)
		require.NoError(t, err)
	}
	return builder, remote
}

func newHorizonSync(t *testing.T, builder *unittest.ChainBuilder, local *node, config chainsync.Config) *chainsync.HorizonSync {
	return newHorizonSyncWithSink(t, builder, local, local.database, config)
}

func newHorizonSyncWithSink(t *testing.T, builder *unittest.ChainBuilder, local *node, sink chainsync.HorizonSink, config chainsync.Config) *chainsync.HorizonSync {
	executor := validation.NewExecutor(unittest.Logger(), metrics.NewNoopCollector(), 2)
	t.Cleanup(executor.Stop)
	balance := validation.NewChainBalanceValidator(builder.Rules(), crypto.NewCommitmentFactory())
	sync, err := chainsync.NewHorizonSync(unittest.Logger(), config, metrics.NewNoopCollector(), sink, local.store, executor, balance)
	require.NoError(t, err)
	return sync
}

func testConfig() chainsync.Config {
	config := chainsync.DefaultConfig()
	config.MaxSize = 4
	config.RetryInterval = time.Millisecond
	return config
}

// collect runs fn with an event channel and returns the events it emitted.
func collect(t *testing.T, fn func(chan<- chainsync.SyncEvent) error) ([]chainsync.SyncEvent, error) {
	events := make(chan chainsync.SyncEvent)
	result := make(chan error, 1)
	go func() {
		result <- fn(events)
	}()
	var received []chainsync.SyncEvent
	for event := range events {
		received = append(received, event)
	}
	select {
	case err := <-result:
		return received, err
	case <-time.After(5 * time.Second):
		require.Fail(t, "sync did not return after closing its events")
		return nil, nil
	}
}

func statuses(events []chainsync.SyncEvent) []chainsync.Status {
	out := make([]chainsync.Status, 0, len(events))
	for _, e := range events {
		out = append(out, e.Status)
	}
	return out
}

func unspent(t *testing.T, backend storage.ChainBackend) map[chain.Hash]uint64 {
	out := make(map[chain.Hash]uint64)
	err := backend.ForEachUnspentOutput(func(record *storage.OutputRecord) error {
		out[record.Output.Hash()] = record.MinedHeight
		return nil
	})
	require.NoError(t, err)
	return out
}

func kernelCount(t *testing.T, backend storage.ChainBackend) int {
	count := 0
	err := backend.ForEachKernel(func(*storage.KernelRecord) error {
		count++
		return nil
	})
	require.NoError(t, err)
	return count
}

func requireHeight(t *testing.T, local *node, expected uint64) {
	metadata, err := local.database.ChainMetadata()
	require.NoError(t, err)
	require.Equal(t, expected, metadata.HeightOfLongestChain)
}

func TestHorizonSync(t *testing.T) {
	builder, remote := remoteChain(t, 10)
	local := newNode(t, builder)
	sync := newHorizonSync(t, builder, local, testConfig())

	events, err := collect(t, func(events chan<- chainsync.SyncEvent) error {
		return sync.Sync(context.Background(), testPeer, remote.database, events)
	})
	require.NoError(t, err)

	assert.Equal(t, []chainsync.Status{
		chainsync.StatusStarting,
		chainsync.StatusSyncing,
		chainsync.StatusSyncing,
		chainsync.StatusSyncing,
		chainsync.StatusFinalizing,
		chainsync.StatusComplete,
	}, statuses(events))
	assert.Equal(t, []uint64{4, 8, 10}, []uint64{events[1].Height, events[2].Height, events[3].Height})
	require.NotEqual(t, uuid.Nil, events[0].Session)
	for _, event := range events {
		assert.Equal(t, events[0].Session, event.Session)
		assert.Equal(t, testPeer, event.Peer)
	}

	metadata, err := local.database.ChainMetadata()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), metadata.HeightOfLongestChain)
	assert.Equal(t, builder.Tip().Hash(), metadata.BestBlock)
	assert.Equal(t, uint64(10), metadata.PrunedHeight)

	// only headers were synced, the output and kernel sets match the peer
	_, err = local.store.BlockBody(builder.Block(5).Hash())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, unspent(t, remote.store), unspent(t, local.store))
	assert.Equal(t, kernelCount(t, remote.store), kernelCount(t, local.store))

	// the synced state is good enough to extend the chain
	change := builder.Spendable(11)[0]
	next := builder.NextBlock(builder.Spend([]unittest.SpendableOutput{change}, 400_000_000))
	result, err := local.database.AddBlock(next.Block, testPeer)
	require.NoError(t, err)
	assert.Equal(t, bstorage.BlockAdded, result)
}

func TestHorizonSync_FromLocalTip(t *testing.T) {
	builder, remote := remoteChain(t, 6)
	local := newNode(t, builder)
	_, err := local.database.AddBlock(builder.Block(1).Block, testPeer)
	require.NoError(t, err)

	// the output of block 1 spent by block 2 is already stored locally
	sync := newHorizonSync(t, builder, local, testConfig())
	require.NoError(t, sync.Sync(context.Background(), testPeer, remote.database, nil))

	requireHeight(t, local, 6)
	assert.Equal(t, unspent(t, remote.store), unspent(t, local.store))
	_, err = local.store.BlockBody(builder.Block(1).Hash())
	assert.NoError(t, err)
}

func TestHorizonSync_WithinTolerance(t *testing.T) {
	builder, remote := remoteChain(t, 2)
	local := newNode(t, builder)
	config := testConfig()
	config.Tolerance = 2
	sync := newHorizonSync(t, builder, local, config)

	events, err := collect(t, func(events chan<- chainsync.SyncEvent) error {
		return sync.Sync(context.Background(), testPeer, remote.database, events)
	})
	require.NoError(t, err)
	assert.Equal(t, []chainsync.Status{chainsync.StatusComplete}, statuses(events))
	requireHeight(t, local, 0)
}

// flakySource fails every header fetch of the given height a number of
// times.
type flakySource struct {
	chainsync.HorizonSource
	height   uint64
	failures *atomic.Int64
}

func (s *flakySource) FetchHeader(height uint64) (*chain.BlockHeader, error) {
	if height == s.height && s.failures.Dec() >= 0 {
		return nil, errors.New("connection reset")
	}
	return s.HorizonSource.FetchHeader(height)
}

func TestHorizonSync_RetriesFetch(t *testing.T) {
	builder, remote := remoteChain(t, 5)
	local := newNode(t, builder)
	sync := newHorizonSync(t, builder, local, testConfig())

	source := &flakySource{HorizonSource: remote.database, height: 3, failures: atomic.NewInt64(2)}
	require.NoError(t, sync.Sync(context.Background(), testPeer, source, nil))
	requireHeight(t, local, 5)
}

func TestHorizonSync_Aborted(t *testing.T) {
	builder, remote := remoteChain(t, 8)
	local := newNode(t, builder)
	sync := newHorizonSync(t, builder, local, testConfig())

	// the first batch is added before the peer stops serving headers
	source := &flakySource{HorizonSource: remote.database, height: 6, failures: atomic.NewInt64(100)}
	events, err := collect(t, func(events chan<- chainsync.SyncEvent) error {
		return sync.Sync(context.Background(), testPeer, source, events)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, chainsync.ErrSyncAborted)

	require.NotEmpty(t, events)
	assert.Contains(t, statuses(events), chainsync.StatusSyncing)
	last := events[len(events)-1]
	assert.Equal(t, chainsync.StatusFailed, last.Status)
	assert.ErrorIs(t, last.Err, chainsync.ErrSyncAborted)

	requireHeight(t, local, 0)
	_, err = local.store.HeaderByHeight(4)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// tamperedSource serves a header at the given height that does not link to
// its parent.
type tamperedSource struct {
	chainsync.HorizonSource
	height uint64
}

func (s *tamperedSource) FetchHeader(height uint64) (*chain.BlockHeader, error) {
	header, err := s.HorizonSource.FetchHeader(height)
	if err != nil || height != s.height {
		return header, err
	}
	bad := *header
	bad.PrevHash = chain.Hash{0x01}
	return &bad, nil
}

func TestHorizonSync_InvalidHeader(t *testing.T) {
	builder, remote := remoteChain(t, 6)
	local := newNode(t, builder)
	sync := newHorizonSync(t, builder, local, testConfig())

	err := sync.Sync(context.Background(), testPeer, &tamperedSource{HorizonSource: remote.database, height: 2}, nil)
	require.Error(t, err)
	assert.True(t, validation.IsInvalidChainingError(err), "unexpected error: %v", err)
	requireHeight(t, local, 0)
}

// stateSource rewrites the horizon state served by a peer.
type stateSource struct {
	chainsync.HorizonSource
	rewrite func(*storage.HorizonState)
}

func (s *stateSource) FetchHorizonState(from, to uint64) (*storage.HorizonState, error) {
	state, err := s.HorizonSource.FetchHorizonState(from, to)
	if err != nil {
		return nil, err
	}
	s.rewrite(state)
	return state, nil
}

func TestHorizonSync_InvalidState(t *testing.T) {
	t.Run("missing output", func(t *testing.T) {
		builder, remote := remoteChain(t, 6)
		local := newNode(t, builder)
		sync := newHorizonSync(t, builder, local, testConfig())
		before := unspent(t, local.store)

		source := &stateSource{HorizonSource: remote.database, rewrite: func(state *storage.HorizonState) {
			state.Outputs = state.Outputs[1:]
		}}
		err := sync.Sync(context.Background(), testPeer, source, nil)
		require.Error(t, err)
		assert.True(t, validation.IsChainBalanceValidationFailedError(err), "unexpected error: %v", err)

		requireHeight(t, local, 0)
		assert.Equal(t, before, unspent(t, local.store))
	})

	t.Run("output from an unknown block", func(t *testing.T) {
		builder, remote := remoteChain(t, 6)
		local := newNode(t, builder)
		sync := newHorizonSync(t, builder, local, testConfig())

		source := &stateSource{HorizonSource: remote.database, rewrite: func(state *storage.HorizonState) {
			state.Outputs[0].HeaderHash = chain.Hash{0x02}
		}}
		err := sync.Sync(context.Background(), testPeer, source, nil)
		require.Error(t, err)
		assert.True(t, validation.IsInvalidBlockError(err), "unexpected error: %v", err)
		requireHeight(t, local, 0)
	})

	t.Run("spend of an unknown output", func(t *testing.T) {
		builder, remote := remoteChain(t, 6)
		local := newNode(t, builder)
		sync := newHorizonSync(t, builder, local, testConfig())

		source := &stateSource{HorizonSource: remote.database, rewrite: func(state *storage.HorizonState) {
			require.NotEmpty(t, state.Spent)
			state.Spent[0].OutputHash = chain.Hash{0x03}
		}}
		err := sync.Sync(context.Background(), testPeer, source, nil)
		require.Error(t, err)
		assert.True(t, validation.IsInvalidBlockError(err), "unexpected error: %v", err)
		requireHeight(t, local, 0)
	})

	t.Run("state taken at another height", func(t *testing.T) {
		builder, remote := remoteChain(t, 6)
		local := newNode(t, builder)
		sync := newHorizonSync(t, builder, local, testConfig())

		source := &stateSource{HorizonSource: remote.database, rewrite: func(state *storage.HorizonState) {
			state.Height--
		}}
		err := sync.Sync(context.Background(), testPeer, source, nil)
		require.Error(t, err)
		assert.True(t, validation.IsInvalidBlockError(err), "unexpected error: %v", err)
		requireHeight(t, local, 0)

		metadata, err := local.database.ChainMetadata()
		require.NoError(t, err)
		assert.Zero(t, metadata.PrunedHeight)
	})
}

// slowSink adds headers to a database with a delay and counts the headers
// added.
type slowSink struct {
	chainsync.HorizonSink
	delay time.Duration
	added *atomic.Int64
}

func (s *slowSink) AddHeader(header *chain.BlockHeader, peer string) error {
	time.Sleep(s.delay)
	err := s.HorizonSink.AddHeader(header, peer)
	if err == nil {
		s.added.Inc()
	}
	return err
}

func TestHorizonSync_BatchDeadline(t *testing.T) {
	builder, remote := remoteChain(t, 12)
	local := newNode(t, builder)
	config := testConfig()
	config.MaxSize = 12
	config.BatchDeadline = 50 * time.Millisecond
	sink := &slowSink{HorizonSink: local.database, delay: 20 * time.Millisecond, added: atomic.NewInt64(0)}
	sync := newHorizonSyncWithSink(t, builder, local, sink, config)

	err := sync.Sync(context.Background(), testPeer, remote.database, nil)
	require.Error(t, err)
	assert.True(t, validation.IsInfrastructureError(err), "unexpected error: %v", err)
	assert.True(t, validation.IsDeadlineExceeded(err), "unexpected error: %v", err)

	// the batch stops adding headers once Sync has returned
	added := sink.added.Load()
	assert.Less(t, added, int64(12))
	time.Sleep(10 * config.BatchDeadline)
	assert.Equal(t, added, sink.added.Load())
	requireHeight(t, local, 0)
}

func TestNewHorizonSync_InvalidConfig(t *testing.T) {
	builder := unittest.NewChainBuilder(t, unittest.LocalNetRules(t))
	local := newNode(t, builder)
	executor := validation.NewExecutor(unittest.Logger(), metrics.NewNoopCollector(), 1)
	defer executor.Stop()
	balance := validation.NewChainBalanceValidator(builder.Rules(), crypto.NewCommitmentFactory())

	config := chainsync.DefaultConfig()
	config.MaxSize = 0
	_, err := chainsync.NewHorizonSync(unittest.Logger(), config, metrics.NewNoopCollector(), local.database, local.store, executor, balance)
	require.Error(t, err)

	config = chainsync.DefaultConfig()
	config.BatchDeadline = 0
	_, err = chainsync.NewHorizonSync(unittest.Logger(), config, metrics.NewNoopCollector(), local.database, local.store, executor, balance)
	require.Error(t, err)
}
