package validation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tari-project/tari-core/consensus/rules"
	"github.com/tari-project/tari-core/crypto"
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/module/metrics"
	"github.com/tari-project/tari-core/module/validation"
	bstorage "github.com/tari-project/tari-core/storage/badger"
	"github.com/tari-project/tari-core/utils/unittest"
)

type fixture struct {
	t           *testing.T
	rules       *rules.Manager
	builder     *unittest.ChainBuilder
	store       *bstorage.ChainStore
	commitments *crypto.CommitmentFactory
}

// newFixture returns a store holding the genesis block of a fresh builder.
func newFixture(t *testing.T) *fixture {
	manager := unittest.LocalNetRules(t)
	builder := unittest.NewChainBuilder(t, manager)
	store := bstorage.NewChainStore(metrics.NewNoopCollector(), unittest.InMemoryBadgerDB(t))
	require.NoError(t, store.ApplyBlock(builder.Block(0)))
	return &fixture{
		t:           t,
		rules:       manager,
		builder:     builder,
		store:       store,
		commitments: builder.CommitmentFactory(),
	}
}

// applyNext builds the next block with txs and applies it without validation.
func (f *fixture) applyNext(txs ...*unittest.Transaction) *chain.ChainBlock {
	block := f.builder.NextBlock(txs...)
	require.NoError(f.t, f.store.ApplyBlock(block))
	return block
}

func (f *fixture) faucet() unittest.SpendableOutput {
	return f.builder.Spendable(0)[0]
}

func (f *fixture) internal(options ...validation.BodyInternalOption) *validation.AggregateBodyInternalConsistencyValidator {
	return validation.NewAggregateBodyInternalConsistencyValidator(f.rules, f.commitments, options...)
}

func (f *fixture) chainLinked() *validation.AggregateBodyChainLinkedValidator {
	return validation.NewAggregateBodyChainLinkedValidator(f.store)
}

func (f *fixture) blockValidator(manager *rules.Manager, options ...validation.HeaderOption) *validation.BlockValidator {
	headers := validation.NewHeaderValidator(manager, f.store, options...)
	body := validation.NewAggregateBodyValidator(
		validation.NewAggregateBodyInternalConsistencyValidator(manager, f.commitments),
		validation.NewAggregateBodyChainLinkedValidator(f.store),
	)
	return validation.NewBlockValidator(manager, f.store, headers, body)
}

// rulesWith returns local network rules modified by fn.
func rulesWith(t *testing.T, fn func(*rules.ConsensusConstants)) *rules.Manager {
	constants := rules.LocalNetConstants()
	fn(&constants[0])
	manager, err := rules.NewManager(rules.LocalNet, constants...)
	require.NoError(t, err)
	return manager
}

func requireKind(t *testing.T, err error, kind validation.TransactionErrorKind) {
	t.Helper()
	require.Error(t, err)
	actual, ok := validation.TransactionErrorKindOf(err)
	require.True(t, ok, "expected a transaction error, got %v", err)
	require.Equal(t, kind, actual, "unexpected error: %v", err)
}

func copyBody(body *chain.AggregateBody) *chain.AggregateBody {
	return chain.NewAggregateBody(
		append([]chain.TransactionInput(nil), body.Inputs...),
		append([]chain.TransactionOutput(nil), body.Outputs...),
		append([]chain.TransactionKernel(nil), body.Kernels...),
	)
}
