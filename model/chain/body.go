package chain

import (
	"bytes"
	"fmt"

	"golang.org/x/exp/slices"
)

// TransactionWeight holds the per-item weights used to size a body.
type TransactionWeight struct {
	KernelWeight uint64
	InputWeight  uint64
	OutputWeight uint64
	// CovenantBytesPerGram is the number of covenant bytes that add one unit of weight.
	CovenantBytesPerGram uint64
}

// DefaultTransactionWeight is the weighting used by every network.
var DefaultTransactionWeight = TransactionWeight{
	KernelWeight:         10,
	InputWeight:          8,
	OutputWeight:         53,
	CovenantBytesPerGram: 16,
}

// AggregateBody is the set of inputs, outputs and kernels of a transaction or
// block. Order carries no meaning; blocks require the canonical order given by
// Sort.
type AggregateBody struct {
	Inputs  []TransactionInput
	Outputs []TransactionOutput
	Kernels []TransactionKernel
}

// NewAggregateBody returns a body holding the given items.
func NewAggregateBody(inputs []TransactionInput, outputs []TransactionOutput, kernels []TransactionKernel) *AggregateBody {
	return &AggregateBody{Inputs: inputs, Outputs: outputs, Kernels: kernels}
}

// IsEmpty returns true if the body holds no items.
func (b *AggregateBody) IsEmpty() bool {
	return len(b.Inputs) == 0 && len(b.Outputs) == 0 && len(b.Kernels) == 0
}

func compareInputs(a, b TransactionInput) int {
	if c := a.Commitment.Compare(b.Commitment); c != 0 {
		return c
	}
	ha, hb := a.OutputHash(), b.OutputHash()
	return bytes.Compare(ha[:], hb[:])
}

func compareOutputs(a, b TransactionOutput) int {
	if c := a.Commitment.Compare(b.Commitment); c != 0 {
		return c
	}
	ha, hb := a.Hash(), b.Hash()
	return bytes.Compare(ha[:], hb[:])
}

func compareKernels(a, b TransactionKernel) int {
	if c := a.Excess.Compare(b.Excess); c != 0 {
		return c
	}
	ha, hb := a.Hash(), b.Hash()
	return bytes.Compare(ha[:], hb[:])
}

// Sort puts the body into canonical order.
func (b *AggregateBody) Sort() {
	slices.SortStableFunc(b.Inputs, compareInputs)
	slices.SortStableFunc(b.Outputs, compareOutputs)
	slices.SortStableFunc(b.Kernels, compareKernels)
}

// IsSorted returns true if the body is in canonical order.
func (b *AggregateBody) IsSorted() bool {
	return slices.IsSortedFunc(b.Inputs, compareInputs) &&
		slices.IsSortedFunc(b.Outputs, compareOutputs) &&
		slices.IsSortedFunc(b.Kernels, compareKernels)
}

// DuplicateInput returns the hash of the first output that is spent twice.
func (b *AggregateBody) DuplicateInput() (Hash, bool) {
	seen := make(map[Hash]struct{}, len(b.Inputs))
	for i := range b.Inputs {
		h := b.Inputs[i].OutputHash()
		if _, ok := seen[h]; ok {
			return h, true
		}
		seen[h] = struct{}{}
	}
	return ZeroHash, false
}

// DuplicateOutput returns the hash of the first output that appears twice,
// either by hash or by commitment.
func (b *AggregateBody) DuplicateOutput() (Hash, bool) {
	hashes := make(map[Hash]struct{}, len(b.Outputs))
	commitments := make(map[Commitment]struct{}, len(b.Outputs))
	for i := range b.Outputs {
		h := b.Outputs[i].Hash()
		if _, ok := hashes[h]; ok {
			return h, true
		}
		if _, ok := commitments[b.Outputs[i].Commitment]; ok {
			return h, true
		}
		hashes[h] = struct{}{}
		commitments[b.Outputs[i].Commitment] = struct{}{}
	}
	return ZeroHash, false
}

// TotalFees sums the kernel fees. It fails if the sum overflows.
func (b *AggregateBody) TotalFees() (MicroTari, error) {
	var total MicroTari
	for i := range b.Kernels {
		var ok bool
		total, ok = total.CheckedAdd(b.Kernels[i].Fee)
		if !ok {
			return 0, fmt.Errorf("total fees overflow at kernel %d", i)
		}
	}
	return total, nil
}

// Weight returns the weight of the body under the given weighting.
func (b *AggregateBody) Weight(w TransactionWeight) uint64 {
	var covenantBytes uint64
	for i := range b.Outputs {
		covenantBytes += uint64(len(b.Outputs[i].Covenant))
	}
	weight := uint64(len(b.Kernels))*w.KernelWeight +
		uint64(len(b.Inputs))*w.InputWeight +
		uint64(len(b.Outputs))*w.OutputWeight
	if w.CovenantBytesPerGram > 0 {
		weight += (covenantBytes + w.CovenantBytesPerGram - 1) / w.CovenantBytesPerGram
	}
	return weight
}

// CoinbaseOutputs returns the outputs flagged as coinbase.
func (b *AggregateBody) CoinbaseOutputs() []*TransactionOutput {
	var out []*TransactionOutput
	for i := range b.Outputs {
		if b.Outputs[i].Features.IsCoinbase() {
			out = append(out, &b.Outputs[i])
		}
	}
	return out
}

// CoinbaseKernels returns the kernels flagged as coinbase.
func (b *AggregateBody) CoinbaseKernels() []*TransactionKernel {
	var out []*TransactionKernel
	for i := range b.Kernels {
		if b.Kernels[i].IsCoinbase() {
			out = append(out, &b.Kernels[i])
		}
	}
	return out
}

// InputHashes returns the output hashes spent by the body, in body order.
func (b *AggregateBody) InputHashes() []Hash {
	out := make([]Hash, len(b.Inputs))
	for i := range b.Inputs {
		out[i] = b.Inputs[i].OutputHash()
	}
	return out
}

// OutputHashes returns the hashes of the outputs, in body order.
func (b *AggregateBody) OutputHashes() []Hash {
	out := make([]Hash, len(b.Outputs))
	for i := range b.Outputs {
		out[i] = b.Outputs[i].Hash()
	}
	return out
}

// KernelHashes returns the hashes of the kernels, in body order.
func (b *AggregateBody) KernelHashes() []Hash {
	out := make([]Hash, len(b.Kernels))
	for i := range b.Kernels {
		out[i] = b.Kernels[i].Hash()
	}
	return out
}

func (b *AggregateBody) String() string {
	return fmt.Sprintf("body (%d inputs, %d outputs, %d kernels)", len(b.Inputs), len(b.Outputs), len(b.Kernels))
}
