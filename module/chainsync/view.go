package chainsync

import (
	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/storage"
)

// horizonView is the local chain with a downloaded horizon state laid over
// its output and kernel sets. It lets the chain balance be checked before
// the state is stored.
type horizonView struct {
	storage.ChainBackend
	state *storage.HorizonState
	spent map[chain.Hash]struct{}
}

func newHorizonView(backend storage.ChainBackend, state *storage.HorizonState) *horizonView {
	spent := make(map[chain.Hash]struct{}, len(state.Spent))
	for i := range state.Spent {
		spent[state.Spent[i].OutputHash] = struct{}{}
	}
	return &horizonView{ChainBackend: backend, state: state, spent: spent}
}

func (v *horizonView) ForEachUnspentOutput(fn func(*storage.OutputRecord) error) error {
	err := v.ChainBackend.ForEachUnspentOutput(func(record *storage.OutputRecord) error {
		if _, ok := v.spent[record.Output.Hash()]; ok {
			return nil
		}
		return fn(record)
	})
	if err != nil {
		return err
	}
	for i := range v.state.Outputs {
		err = fn(&v.state.Outputs[i])
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *horizonView) ForEachKernel(fn func(*storage.KernelRecord) error) error {
	err := v.ChainBackend.ForEachKernel(fn)
	if err != nil {
		return err
	}
	for i := range v.state.Kernels {
		err = fn(&v.state.Kernels[i])
		if err != nil {
			return err
		}
	}
	return nil
}
