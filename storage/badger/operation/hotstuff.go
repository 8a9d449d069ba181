package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/storage"
)

// Every committee-chain key starts with the asset public key, so that the
// chains of different assets share one database.

// InsertTreeNode stores a proposal tree node by hash.
func InsertTreeNode(asset chain.PublicKey, node *storage.TreeNodeRecord) func(*badger.Txn) error {
	return insert(makePrefix(codeHotStuffNode, asset, chain.Hash(node.Hash)), node)
}

func RetrieveTreeNode(asset chain.PublicKey, hash hotstuff.TreeNodeHash, node *storage.TreeNodeRecord) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHotStuffNode, asset, chain.Hash(hash)), node)
}

// UpsertPreparedQC stores the highest certificate of the prepare phase.
func UpsertPreparedQC(asset chain.PublicKey, qc *hotstuff.QuorumCertificate) func(*badger.Txn) error {
	return upsert(makePrefix(codeHotStuffPreparedQC, asset), qc)
}

// RetrievePreparedQC returns storage.ErrNotFound for a chain without
// genesis.
func RetrievePreparedQC(asset chain.PublicKey, qc *hotstuff.QuorumCertificate) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHotStuffPreparedQC, asset), qc)
}

// UpsertLockedQC stores the certificate the replica is locked on.
func UpsertLockedQC(asset chain.PublicKey, qc *hotstuff.QuorumCertificate) func(*badger.Txn) error {
	return upsert(makePrefix(codeHotStuffLockedQC, asset), qc)
}

func RetrieveLockedQC(asset chain.PublicKey, qc *hotstuff.QuorumCertificate) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHotStuffLockedQC, asset), qc)
}

// IndexCommittedNode marks the node at height as committed.
func IndexCommittedNode(asset chain.PublicKey, height uint32, hash hotstuff.TreeNodeHash) func(*badger.Txn) error {
	return insert(makePrefix(codeHotStuffCommitted, asset, height), chain.Hash(hash))
}

func LookupCommittedNode(asset chain.PublicKey, height uint32, hash *chain.Hash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHotStuffCommitted, asset, height), hash)
}

// UpsertLastVotedView stores the last view the replica voted in.
func UpsertLastVotedView(asset chain.PublicKey, view hotstuff.ViewID) func(*badger.Txn) error {
	return upsert(makePrefix(codeHotStuffLastVotedOn, asset), uint64(view))
}

func RetrieveLastVotedView(asset chain.PublicKey, view *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHotStuffLastVotedOn, asset), view)
}
