package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitment(b byte) Commitment {
	var c Commitment
	c[0] = 0x02
	c[32] = b
	return c
}

func TestAggregateBody_Sort(t *testing.T) {
	body := NewAggregateBody(
		[]TransactionInput{{Commitment: commitment(3)}, {Commitment: commitment(1)}},
		[]TransactionOutput{{Commitment: commitment(9)}, {Commitment: commitment(2)}, {Commitment: commitment(5)}},
		[]TransactionKernel{{Excess: commitment(7)}, {Excess: commitment(4)}},
	)
	assert.False(t, body.IsSorted())

	body.Sort()
	assert.True(t, body.IsSorted())
	assert.Equal(t, commitment(1), body.Inputs[0].Commitment)
	assert.Equal(t, commitment(2), body.Outputs[0].Commitment)
	assert.Equal(t, commitment(9), body.Outputs[2].Commitment)
	assert.Equal(t, commitment(4), body.Kernels[0].Excess)
}

func TestAggregateBody_Duplicates(t *testing.T) {
	out := TransactionOutput{Commitment: commitment(1)}

	body := NewAggregateBody(nil, []TransactionOutput{out, {Commitment: commitment(2)}}, nil)
	_, dup := body.DuplicateOutput()
	assert.False(t, dup)

	body.Outputs = append(body.Outputs, out)
	h, dup := body.DuplicateOutput()
	assert.True(t, dup)
	assert.Equal(t, out.Hash(), h)

	in := out.ToInput()
	body = NewAggregateBody([]TransactionInput{in, in}, nil, nil)
	h, dup = body.DuplicateInput()
	assert.True(t, dup)
	assert.Equal(t, out.Hash(), h)
}

func TestAggregateBody_TotalFees(t *testing.T) {
	body := NewAggregateBody(nil, nil, []TransactionKernel{{Fee: 10}, {Fee: 32}})
	fees, err := body.TotalFees()
	require.NoError(t, err)
	assert.Equal(t, MicroTari(42), fees)

	body.Kernels = append(body.Kernels, TransactionKernel{Fee: MicroTari(^uint64(0))})
	_, err = body.TotalFees()
	assert.Error(t, err)
}

func TestAggregateBody_Weight(t *testing.T) {
	body := NewAggregateBody(
		[]TransactionInput{{}},
		[]TransactionOutput{{Covenant: make([]byte, 17)}, {}},
		[]TransactionKernel{{}},
	)
	// 10 + 8 + 2*53 + ceil(17/16)
	assert.Equal(t, uint64(126), body.Weight(DefaultTransactionWeight))
}

func TestInputOutputHashAgree(t *testing.T) {
	out := TransactionOutput{
		Features:   OutputFeatures{OutputType: OutputTypeCoinbase, Maturity: 3},
		Commitment: commitment(8),
		Proof:      RangeProof{MinimumValuePromise: 77},
		Covenant:   []byte{1, 2, 3},
	}
	in := out.ToInput()
	assert.Equal(t, out.Hash(), in.OutputHash())
	assert.False(t, in.IsMatureAt(2))
	assert.True(t, in.IsMatureAt(3))

	// the proof signature does not affect the hash
	out.Proof.Signature.S[0] = 1
	assert.Equal(t, in.OutputHash(), out.Hash())
}

func TestMerkleRoot(t *testing.T) {
	assert.Equal(t, ZeroHash, MerkleRoot(nil))

	a := Hash{1}
	b := Hash{2}
	c := Hash{3}
	one := MerkleRoot([]Hash{a})
	assert.NotEqual(t, a, one)

	two := MerkleRoot([]Hash{a, b})
	assert.NotEqual(t, two, MerkleRoot([]Hash{b, a}))
	assert.NotEqual(t, two, MerkleRoot([]Hash{a, b, c}))
	assert.Equal(t, MerkleRoot([]Hash{a, b, c}), MerkleRoot([]Hash{a, b, c}))
}

func TestHeaderHashes(t *testing.T) {
	h := BlockHeader{Height: 1, Nonce: 1}
	mining := h.MiningHash()
	hash := h.Hash()

	h.Nonce = 2
	assert.Equal(t, mining, h.MiningHash())
	assert.NotEqual(t, hash, h.Hash())

	h.Pow.Data = []byte{1}
	assert.Equal(t, mining, h.MiningHash())

	h.Height = 2
	assert.NotEqual(t, mining, h.MiningHash())
}
