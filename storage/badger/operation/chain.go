package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/storage"
)

// UpsertChainMetadata stores the chain tip.
func UpsertChainMetadata(metadata *chain.ChainMetadata) func(*badger.Txn) error {
	return upsert(makePrefix(codeChainMetadata), metadata)
}

// RetrieveChainMetadata returns storage.ErrNotFound for an empty chain.
func RetrieveChainMetadata(metadata *chain.ChainMetadata) func(*badger.Txn) error {
	return retrieve(makePrefix(codeChainMetadata), metadata)
}

// InsertHeader stores a header by hash.
func InsertHeader(hash chain.Hash, header *chain.BlockHeader) func(*badger.Txn) error {
	return insert(makePrefix(codeHeader, hash), header)
}

func RetrieveHeader(hash chain.Hash, header *chain.BlockHeader) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHeader, hash), header)
}

func RemoveHeader(hash chain.Hash) func(*badger.Txn) error {
	return remove(makePrefix(codeHeader, hash))
}

func CheckHeader(hash chain.Hash, headerExists *bool) func(*badger.Txn) error {
	return exists(makePrefix(codeHeader, hash), headerExists)
}

// InsertAccumulatedData stores the accumulated data of a header.
func InsertAccumulatedData(data *chain.BlockHeaderAccumulatedData) func(*badger.Txn) error {
	return insert(makePrefix(codeHeaderAccumulatedData, data.Hash), data)
}

func RetrieveAccumulatedData(hash chain.Hash, data *chain.BlockHeaderAccumulatedData) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHeaderAccumulatedData, hash), data)
}

func RemoveAccumulatedData(hash chain.Hash) func(*badger.Txn) error {
	return remove(makePrefix(codeHeaderAccumulatedData, hash))
}

// IndexHeaderHeight maps a canonical height to its header hash.
func IndexHeaderHeight(height uint64, hash chain.Hash) func(*badger.Txn) error {
	return insert(makePrefix(codeHeightToHeaderHash, height), hash)
}

func LookupHeaderHeight(height uint64, hash *chain.Hash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHeightToHeaderHash, height), hash)
}

func RemoveHeaderHeight(height uint64) func(*badger.Txn) error {
	return remove(makePrefix(codeHeightToHeaderHash, height))
}

// InsertBlockBody stores the body of a block by header hash.
func InsertBlockBody(hash chain.Hash, body *chain.AggregateBody) func(*badger.Txn) error {
	return insert(makePrefix(codeBlockBody, hash), body)
}

func RetrieveBlockBody(hash chain.Hash, body *chain.AggregateBody) func(*badger.Txn) error {
	return retrieve(makePrefix(codeBlockBody, hash), body)
}

func RemoveBlockBody(hash chain.Hash) func(*badger.Txn) error {
	return remove(makePrefix(codeBlockBody, hash))
}

// InsertOutput adds an output to the output set and indexes its commitment.
func InsertOutput(record *storage.OutputRecord) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		hash := record.Output.Hash()
		err := insert(makePrefix(codeOutput, hash), record)(tx)
		if err != nil {
			return err
		}
		return IndexCommitment(record.Output.Commitment, hash)(tx)
	}
}

func RetrieveOutput(hash chain.Hash, record *storage.OutputRecord) func(*badger.Txn) error {
	return retrieve(makePrefix(codeOutput, hash), record)
}

// RemoveOutput deletes an unspent output and its commitment index.
func RemoveOutput(hash chain.Hash, commitment chain.Commitment) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := remove(makePrefix(codeOutput, hash))(tx)
		if err != nil {
			return err
		}
		return RemoveCommitmentIndex(commitment)(tx)
	}
}

func LookupOutputByCommitment(commitment chain.Commitment, hash *chain.Hash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeCommitmentToHash, commitment), hash)
}

// InsertSpent marks an output as spent. It returns storage.ErrAlreadyExists
// for a double spend.
func InsertSpent(hash chain.Hash, record *storage.SpentRecord) func(*badger.Txn) error {
	return insert(makePrefix(codeSpentOutput, hash), record)
}

func RetrieveSpent(hash chain.Hash, record *storage.SpentRecord) func(*badger.Txn) error {
	return retrieve(makePrefix(codeSpentOutput, hash), record)
}

func RemoveSpent(hash chain.Hash) func(*badger.Txn) error {
	return remove(makePrefix(codeSpentOutput, hash))
}

func CheckSpent(hash chain.Hash, spent *bool) func(*badger.Txn) error {
	return exists(makePrefix(codeSpentOutput, hash), spent)
}

// InsertKernel stores a kernel by hash.
func InsertKernel(record *storage.KernelRecord) func(*badger.Txn) error {
	return insert(makePrefix(codeKernel, record.Kernel.Hash()), record)
}

func RetrieveKernel(hash chain.Hash, record *storage.KernelRecord) func(*badger.Txn) error {
	return retrieve(makePrefix(codeKernel, hash), record)
}

func RemoveKernel(hash chain.Hash) func(*badger.Txn) error {
	return remove(makePrefix(codeKernel, hash))
}

// TraverseOutputs calls fn for every output, spent or not.
func TraverseOutputs(fn func(*storage.OutputRecord) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeOutput), func() (checkFunc, createFunc, handleFunc) {
		check := func(key []byte) bool { return true }
		var record storage.OutputRecord
		create := func() interface{} { return &record }
		handle := func() error { return fn(&record) }
		return check, create, handle
	})
}

// TraverseKernels calls fn for every kernel.
func TraverseKernels(fn func(*storage.KernelRecord) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeKernel), func() (checkFunc, createFunc, handleFunc) {
		check := func(key []byte) bool { return true }
		var record storage.KernelRecord
		create := func() interface{} { return &record }
		handle := func() error { return fn(&record) }
		return check, create, handle
	})
}

// IndexCommitment maps the commitment of an unspent output to its hash.
func IndexCommitment(commitment chain.Commitment, hash chain.Hash) func(*badger.Txn) error {
	return insert(makePrefix(codeCommitmentToHash, commitment), hash)
}

// RemoveCommitmentIndex drops the commitment index of a spent output.
func RemoveCommitmentIndex(commitment chain.Commitment) func(*badger.Txn) error {
	return remove(makePrefix(codeCommitmentToHash, commitment))
}
