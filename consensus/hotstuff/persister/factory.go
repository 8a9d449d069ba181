package persister

import (
	"sync"

	"github.com/dgraph-io/badger/v2"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/model/chain"
	model "github.com/tari-project/tari-core/model/hotstuff"
)

// Factory hands out one ChainDb per asset over a shared badger database.
type Factory struct {
	db    *badger.DB
	codec model.PayloadCodec
	mu    sync.Mutex
	dbs   map[chain.PublicKey]*ChainDb
}

var _ hotstuff.DbFactory = (*Factory)(nil)

func NewFactory(db *badger.DB, codec model.PayloadCodec) *Factory {
	return &Factory{
		db:    db,
		codec: codec,
		dbs:   make(map[chain.PublicKey]*ChainDb),
	}
}

func (f *Factory) GetOrCreateChainDb(asset chain.PublicKey) (hotstuff.ChainDb, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if db, ok := f.dbs[asset]; ok {
		return db, nil
	}
	db := New(f.db, asset, f.codec)
	f.dbs[asset] = db
	return db, nil
}
