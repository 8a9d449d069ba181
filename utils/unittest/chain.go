package unittest

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tari-project/tari-core/consensus/pow"
	"github.com/tari-project/tari-core/consensus/rules"
	"github.com/tari-project/tari-core/crypto"
	"github.com/tari-project/tari-core/model/chain"
)

// GenesisTimestamp is the timestamp of every synthetic genesis block.
const GenesisTimestamp = 1_600_000_000

// SpendableOutput is an output together with the secrets needed to spend it.
type SpendableOutput struct {
	Output    chain.TransactionOutput
	Value     chain.MicroTari
	Blinding  chain.BlindingFactor
	ScriptKey chain.PrivateKey
	// Height is the height of the block that created the output.
	Height uint64
}

// Transaction is a balanced aggregate body with its offsets.
type Transaction struct {
	Body         chain.AggregateBody
	Offset       chain.BlindingFactor
	ScriptOffset chain.PrivateKey
	// Outputs are the spendable outputs the transaction creates.
	Outputs []SpendableOutput
}

// ChainBuilder deterministically builds a valid base-layer chain. Headers are
// spaced by the target time so that the target difficulty stays at the
// minimum, and every block carries a coinbase.
type ChainBuilder struct {
	t           testing.TB
	rules       *rules.Manager
	commitments *crypto.CommitmentFactory
	rangeProofs *crypto.RangeProofService
	seed        uint64
	blocks      []*chain.ChainBlock
	spendable   []SpendableOutput
}

// NewChainBuilder returns a builder holding a genesis block with a single
// faucet output of the network's faucet value.
func NewChainBuilder(t testing.TB, manager *rules.Manager) *ChainBuilder {
	commitments := crypto.NewCommitmentFactory()
	b := &ChainBuilder{
		t:           t,
		rules:       manager,
		commitments: commitments,
		rangeProofs: crypto.NewRangeProofService(commitments),
	}
	b.genesis()
	return b
}

// LocalNetRules returns the local network consensus rules.
func LocalNetRules(t testing.TB) *rules.Manager {
	manager, err := rules.NewManager(rules.LocalNet)
	require.NoError(t, err)
	return manager
}

// Rules returns the consensus rules of the chain.
func (b *ChainBuilder) Rules() *rules.Manager { return b.rules }

// CommitmentFactory returns the commitment factory used for all outputs.
func (b *ChainBuilder) CommitmentFactory() *crypto.CommitmentFactory { return b.commitments }

// Fork returns an independent builder sharing the blocks up to and including
// height. Both builders can be extended separately; the fork draws its
// secrets from a different seed range.
func (b *ChainBuilder) Fork(height uint64) *ChainBuilder {
	require.Less(b.t, height, uint64(len(b.blocks)))
	fork := *b
	fork.blocks = append([]*chain.ChainBlock(nil), b.blocks[:height+1]...)
	fork.spendable = nil
	for _, o := range b.spendable {
		if o.Height <= height {
			fork.spendable = append(fork.spendable, o)
		}
	}
	fork.seed = b.seed + 1_000_000
	return &fork
}

// Blocks returns every block of the chain, genesis first.
func (b *ChainBuilder) Blocks() []*chain.ChainBlock {
	return b.blocks
}

// Block returns the block at height.
func (b *ChainBuilder) Block(height uint64) *chain.ChainBlock {
	require.Less(b.t, height, uint64(len(b.blocks)))
	return b.blocks[height]
}

// Tip returns the last block.
func (b *ChainBuilder) Tip() *chain.ChainBlock {
	return b.blocks[len(b.blocks)-1]
}

// Spendable returns the outputs that can be spent at height.
func (b *ChainBuilder) Spendable(height uint64) []SpendableOutput {
	var out []SpendableOutput
	for _, o := range b.spendable {
		if o.Output.Features.Maturity <= height {
			out = append(out, o)
		}
	}
	return out
}

func (b *ChainBuilder) key() chain.PrivateKey {
	b.seed++
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], b.seed)
	return crypto.PrivateKeyFromSeed(seed[:])
}

func (b *ChainBuilder) publicKey(k chain.PrivateKey) chain.PublicKey {
	pub, err := crypto.PublicKeyFromPrivateKey(k)
	require.NoError(b.t, err)
	return pub
}

// newOutput creates an output of value with fresh secrets. It returns the
// sender offset private key along with the spendable output.
func (b *ChainBuilder) newOutput(value chain.MicroTari, features chain.OutputFeatures) (SpendableOutput, chain.PrivateKey) {
	blinding := b.key()
	scriptKey := b.key()
	senderOffset := b.key()
	commitment, err := b.commitments.Commit(uint64(value), blinding)
	require.NoError(b.t, err)
	proof, err := b.rangeProofs.ConstructRevealedValue(value, blinding, commitment, b.key())
	require.NoError(b.t, err)
	output := chain.TransactionOutput{
		Features:              features,
		Commitment:            commitment,
		Proof:                 proof,
		ScriptPublicKey:       b.publicKey(scriptKey),
		SenderOffsetPublicKey: b.publicKey(senderOffset),
	}
	return SpendableOutput{Output: output, Value: value, Blinding: blinding, ScriptKey: scriptKey}, senderOffset
}

// newKernel signs a kernel with the given excess secret.
func (b *ChainBuilder) newKernel(
	features chain.KernelFeatures,
	fee chain.MicroTari,
	lockHeight uint64,
	excess chain.PrivateKey,
	burnCommitment *chain.Commitment,
) chain.TransactionKernel {
	kernel := chain.TransactionKernel{
		Features:       features,
		Fee:            fee,
		LockHeight:     lockHeight,
		Excess:         chain.Commitment(b.publicKey(excess)),
		BurnCommitment: burnCommitment,
	}
	sig, err := crypto.SignWithNonce(excess, b.key(), kernel.SignatureMessage())
	require.NoError(b.t, err)
	kernel.ExcessSig = sig
	return kernel
}

// Spend builds a transaction spending inputs into one output per amount; the
// remainder after the amounts is the fee.
func (b *ChainBuilder) Spend(inputs []SpendableOutput, amounts ...chain.MicroTari) *Transaction {
	return b.transaction(inputs, nil, amounts)
}

// Burn builds a transaction that burns burned and pays the given amounts from
// inputs.
func (b *ChainBuilder) Burn(inputs []SpendableOutput, burned chain.MicroTari, amounts ...chain.MicroTari) *Transaction {
	return b.transaction(inputs, &burned, amounts)
}

func (b *ChainBuilder) transaction(inputs []SpendableOutput, burned *chain.MicroTari, amounts []chain.MicroTari) *Transaction {
	var total, spent chain.MicroTari
	for _, in := range inputs {
		total += in.Value
	}
	for _, a := range amounts {
		spent += a
	}
	if burned != nil {
		spent += *burned
	}
	require.GreaterOrEqual(b.t, uint64(total), uint64(spent), "amounts exceed the input value")
	fee := total - spent

	tx := &Transaction{}
	inputBlinding := make([]chain.PrivateKey, 0, len(inputs))
	scriptOffset := crypto.Zero()
	for _, in := range inputs {
		tx.Body.Inputs = append(tx.Body.Inputs, in.Output.ToInput())
		inputBlinding = append(inputBlinding, in.Blinding)
		s, err := crypto.ScalarFromPrivateKey(in.ScriptKey)
		require.NoError(b.t, err)
		scriptOffset = scriptOffset.Add(s)
	}
	outputBlinding := make([]chain.PrivateKey, 0, len(amounts))
	for _, a := range amounts {
		out, senderOffset := b.newOutput(a, chain.OutputFeatures{})
		tx.Body.Outputs = append(tx.Body.Outputs, out.Output)
		tx.Outputs = append(tx.Outputs, out)
		outputBlinding = append(outputBlinding, out.Blinding)
		x, err := crypto.ScalarFromPrivateKey(senderOffset)
		require.NoError(b.t, err)
		scriptOffset = scriptOffset.Sub(x)
	}

	var burnCommitment *chain.Commitment
	if burned != nil {
		out, senderOffset := b.newOutput(*burned, chain.OutputFeatures{OutputType: chain.OutputTypeBurn})
		tx.Body.Outputs = append(tx.Body.Outputs, out.Output)
		outputBlinding = append(outputBlinding, out.Blinding)
		x, err := crypto.ScalarFromPrivateKey(senderOffset)
		require.NoError(b.t, err)
		scriptOffset = scriptOffset.Sub(x)
		burnCommitment = &out.Output.Commitment
	}

	tx.Offset = b.key()
	sumOut, err := crypto.AddPrivateKeys(outputBlinding...)
	require.NoError(b.t, err)
	sumIn, err := crypto.AddPrivateKeys(inputBlinding...)
	require.NoError(b.t, err)
	excess, err := crypto.SubPrivateKeys(sumOut, sumIn)
	require.NoError(b.t, err)
	excess, err = crypto.SubPrivateKeys(excess, tx.Offset)
	require.NoError(b.t, err)

	features := chain.KernelFeaturePlain
	if burnCommitment != nil {
		features = chain.KernelFeatureBurn
	}
	tx.Body.Kernels = append(tx.Body.Kernels, b.newKernel(features, fee, 0, excess, burnCommitment))
	tx.ScriptOffset = scriptOffset.PrivateKey()
	tx.Body.Sort()
	return tx
}

func (b *ChainBuilder) genesis() {
	constants := b.rules.ConsensusConstants(0)
	faucet, senderOffset := b.newOutput(constants.FaucetValue, chain.OutputFeatures{})
	kernel := b.newKernel(chain.KernelFeaturePlain, 0, 0, faucet.Blinding, nil)
	scriptOffset, err := crypto.SubPrivateKeys(chain.PrivateKey{}, senderOffset)
	require.NoError(b.t, err)

	body := chain.NewAggregateBody(nil, []chain.TransactionOutput{faucet.Output}, []chain.TransactionKernel{kernel})
	body.Sort()
	header := chain.BlockHeader{
		Version:           constants.BlockchainVersion,
		Height:            0,
		Timestamp:         GenesisTimestamp,
		TotalScriptOffset: scriptOffset,
		Pow:               chain.ProofOfWork{Algo: chain.PowAlgoSha3x},
	}
	b.seal(&header, body, nil)
	b.spendable = append(b.spendable, faucet)
}

// NextBlock appends a block with a coinbase and the given transactions.
func (b *ChainBuilder) NextBlock(txs ...*Transaction) *chain.ChainBlock {
	return b.NextBlockWithAlgo(chain.PowAlgoSha3x, txs...)
}

// NextBlockWithAlgo appends a block mined with algo.
func (b *ChainBuilder) NextBlockWithAlgo(algo chain.PowAlgorithm, txs ...*Transaction) *chain.ChainBlock {
	prev := b.Tip()
	height := prev.Block.Header.Height + 1
	constants := b.rules.ConsensusConstants(height)
	params, ok := constants.PowAlgorithm(algo)
	require.True(b.t, ok)

	body := chain.NewAggregateBody(nil, nil, nil)
	offset := chain.PrivateKey{}
	scriptOffset := chain.PrivateKey{}
	var fees chain.MicroTari
	var err error
	for _, tx := range txs {
		body.Inputs = append(body.Inputs, tx.Body.Inputs...)
		body.Outputs = append(body.Outputs, tx.Body.Outputs...)
		body.Kernels = append(body.Kernels, tx.Body.Kernels...)
		offset, err = crypto.AddPrivateKeys(offset, tx.Offset)
		require.NoError(b.t, err)
		scriptOffset, err = crypto.AddPrivateKeys(scriptOffset, tx.ScriptOffset)
		require.NoError(b.t, err)
		for i := range tx.Body.Kernels {
			fees += tx.Body.Kernels[i].Fee
		}
	}

	reward := b.rules.BlockReward(height) + fees
	coinbase, senderOffset := b.newOutput(reward, chain.OutputFeatures{
		OutputType: chain.OutputTypeCoinbase,
		Maturity:   b.rules.CoinbaseLockHeight(height),
	})
	body.Outputs = append(body.Outputs, coinbase.Output)
	body.Kernels = append(body.Kernels, b.newKernel(chain.KernelFeatureCoinbase, 0, 0, coinbase.Blinding, nil))
	scriptOffset, err = crypto.SubPrivateKeys(scriptOffset, senderOffset)
	require.NoError(b.t, err)
	body.Sort()

	header := chain.BlockHeader{
		Version:           constants.BlockchainVersion,
		Height:            height,
		PrevHash:          prev.AccumulatedData.Hash,
		Timestamp:         prev.Block.Header.Timestamp + params.TargetTime,
		TotalKernelOffset: offset,
		TotalScriptOffset: scriptOffset,
		Pow:               chain.ProofOfWork{Algo: algo},
	}
	block := b.seal(&header, body, prev)

	b.removeSpent(body.Inputs)
	for _, tx := range txs {
		for _, o := range tx.Outputs {
			o.Height = height
			b.spendable = append(b.spendable, o)
		}
	}
	coinbase.Height = height
	b.spendable = append(b.spendable, coinbase)
	return block
}

// ExtendBy appends n blocks with only a coinbase.
func (b *ChainBuilder) ExtendBy(n int) {
	for i := 0; i < n; i++ {
		b.NextBlock()
	}
}

// seal fills in the body commitments of header and appends the block with its
// accumulated data.
func (b *ChainBuilder) seal(header *chain.BlockHeader, body *chain.AggregateBody, prev *chain.ChainBlock) *chain.ChainBlock {
	prevData := chain.BlockHeaderAccumulatedData{}
	if prev != nil {
		prevData = prev.AccumulatedData
		header.OutputMMRSize = prev.Block.Header.OutputMMRSize
		header.KernelMMRSize = prev.Block.Header.KernelMMRSize
	}
	header.OutputMMRSize += uint64(len(body.Outputs))
	header.KernelMMRSize += uint64(len(body.Kernels))
	header.InputMR = chain.MerkleRoot(body.InputHashes())
	header.OutputMR = chain.MerkleRoot(body.OutputHashes())
	header.KernelMR = chain.MerkleRoot(body.KernelHashes())

	achieved, err := pow.AchievedDifficulty(header)
	require.NoError(b.t, err)
	params, _ := b.rules.ConsensusConstants(header.Height).PowAlgorithm(header.Pow.Algo)
	offset, err := crypto.AddPrivateKeys(prevData.TotalKernelOffset, header.TotalKernelOffset)
	require.NoError(b.t, err)

	data := chain.BlockHeaderAccumulatedData{
		Hash:                          header.Hash(),
		TotalKernelOffset:             offset,
		AccumulatedSha3xDifficulty:    prevData.AccumulatedSha3xDifficulty,
		AccumulatedBlake2bdDifficulty: prevData.AccumulatedBlake2bdDifficulty,
		TargetDifficulty:              params.MinDifficulty,
		AchievedDifficulty:            achieved,
	}
	if header.Pow.Algo == chain.PowAlgoBlake2bd {
		data.AccumulatedBlake2bdDifficulty += achieved
	} else {
		data.AccumulatedSha3xDifficulty += achieved
	}

	block := &chain.ChainBlock{Block: chain.NewBlock(*header, *body), AccumulatedData: data}
	b.blocks = append(b.blocks, block)
	return block
}

func (b *ChainBuilder) removeSpent(inputs []chain.TransactionInput) {
	spent := make(map[chain.Hash]struct{}, len(inputs))
	for i := range inputs {
		spent[inputs[i].OutputHash()] = struct{}{}
	}
	kept := b.spendable[:0:0]
	for _, o := range b.spendable {
		if _, ok := spent[o.Output.Hash()]; !ok {
			kept = append(kept, o)
		}
	}
	b.spendable = kept
}
