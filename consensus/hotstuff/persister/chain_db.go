package persister

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/model/chain"
	model "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/storage"
	"github.com/tari-project/tari-core/storage/badger/operation"
)

// ChainDb persists the proposal tree and certificates of one asset. All
// keys are prefixed with the asset public key, so the chains of several
// assets share one badger database.
type ChainDb struct {
	db    *badger.DB
	asset chain.PublicKey
	codec model.PayloadCodec
}

var _ hotstuff.ChainDb = (*ChainDb)(nil)

// New creates a chain database for asset, encoding payloads with codec.
func New(db *badger.DB, asset chain.PublicKey, codec model.PayloadCodec) *ChainDb {
	return &ChainDb{
		db:    db,
		asset: asset,
		codec: codec,
	}
}

func (c *ChainDb) IsEmpty() (bool, error) {
	var qc model.QuorumCertificate
	err := c.db.View(operation.RetrievePreparedQC(c.asset, &qc))
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not check for genesis: %w", err)
	}
	return false, nil
}

func (c *ChainDb) FindHighestPreparedQC() (*model.QuorumCertificate, error) {
	var qc model.QuorumCertificate
	err := c.db.View(operation.RetrievePreparedQC(c.asset, &qc))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve prepared qc: %w", err)
	}
	return &qc, nil
}

func (c *ChainDb) GetLockedQC() (*model.QuorumCertificate, error) {
	var qc model.QuorumCertificate
	err := c.db.View(operation.RetrieveLockedQC(c.asset, &qc))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve locked qc: %w", err)
	}
	return &qc, nil
}

// SetLockedQC replaces the locked certificate. The lock never moves back to
// an earlier view.
func (c *ChainDb) SetLockedQC(qc *model.QuorumCertificate) error {
	return operation.RetryOnConflict(c.db.Update, c.upsertIfHigher(qc, operation.RetrieveLockedQC, operation.UpsertLockedQC))
}

func (c *ChainDb) SetPreparedQC(qc *model.QuorumCertificate) error {
	return operation.RetryOnConflict(c.db.Update, c.upsertIfHigher(qc, operation.RetrievePreparedQC, operation.UpsertPreparedQC))
}

func (c *ChainDb) upsertIfHigher(
	qc *model.QuorumCertificate,
	retrieve func(chain.PublicKey, *model.QuorumCertificate) func(*badger.Txn) error,
	upsert func(chain.PublicKey, *model.QuorumCertificate) func(*badger.Txn) error,
) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var current model.QuorumCertificate
		err := retrieve(c.asset, &current)(tx)
		if err == nil && current.ViewNumber > qc.ViewNumber {
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not retrieve current qc: %w", err)
		}
		return upsert(c.asset, qc)(tx)
	}
}

// AddNode stores node. Storing a node twice is a no-op.
func (c *ChainDb) AddNode(node *model.HotStuffTreeNode) error {
	payload, err := c.codec.EncodePayload(node.Payload())
	if err != nil {
		return fmt.Errorf("could not encode payload of node %s: %w", node.Hash(), err)
	}
	record := &storage.TreeNodeRecord{
		Hash:      node.Hash(),
		Parent:    node.Parent(),
		Payload:   payload,
		StateRoot: node.StateRoot(),
		Height:    node.Height(),
		Justify:   node.Justify(),
	}
	err = operation.RetryOnConflict(c.db.Update, operation.SkipDuplicates(operation.InsertTreeNode(c.asset, record)))
	if err != nil {
		return fmt.Errorf("could not store node %s: %w", node.Hash(), err)
	}
	return nil
}

func (c *ChainDb) Node(hash model.TreeNodeHash) (*model.HotStuffTreeNode, error) {
	var record storage.TreeNodeRecord
	err := c.db.View(operation.RetrieveTreeNode(c.asset, hash, &record))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve node %s: %w", hash, err)
	}
	payload, err := c.codec.DecodePayload(record.Payload)
	if err != nil {
		return nil, fmt.Errorf("could not decode payload of node %s: %w", hash, err)
	}
	node := model.NewTreeNode(model.UntrustedTreeNode{
		Parent:    record.Parent,
		Payload:   payload,
		StateRoot: record.StateRoot,
		Height:    record.Height,
		Justify:   record.Justify,
		Hash:      record.Hash,
	})
	if !node.IsConsistent() {
		return nil, fmt.Errorf("stored node %s does not match its hash", hash)
	}
	return node, nil
}

// CommitNode indexes node as committed at its height. Committing a second
// node at the same height is an error.
func (c *ChainDb) CommitNode(node *model.HotStuffTreeNode) error {
	return operation.RetryOnConflict(c.db.Update, func(tx *badger.Txn) error {
		var committed chain.Hash
		err := operation.LookupCommittedNode(c.asset, node.Height(), &committed)(tx)
		if err == nil {
			if committed != chain.Hash(node.Hash()) {
				return fmt.Errorf("node %s conflicts with committed node %s at height %d", node.Hash(), committed, node.Height())
			}
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not look up committed node: %w", err)
		}
		return operation.IndexCommittedNode(c.asset, node.Height(), node.Hash())(tx)
	})
}

func (c *ChainDb) CommittedNode(height uint32) (*model.HotStuffTreeNode, error) {
	var hash chain.Hash
	err := c.db.View(operation.LookupCommittedNode(c.asset, height, &hash))
	if err != nil {
		return nil, fmt.Errorf("could not look up committed node at height %d: %w", height, err)
	}
	return c.Node(model.TreeNodeHash(hash))
}

func (c *ChainDb) LastVotedView() (model.ViewID, bool, error) {
	var view uint64
	err := c.db.View(operation.RetrieveLastVotedView(c.asset, &view))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("could not retrieve last voted view: %w", err)
	}
	return model.ViewID(view), true, nil
}

func (c *ChainDb) SetLastVotedView(view model.ViewID) error {
	return operation.RetryOnConflict(c.db.Update, operation.UpsertLastVotedView(c.asset, view))
}
