package replica

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/module"
)

// viewChanger moves a replica to its next view and announces the view to
// the view's leader with a NEW_VIEW message.
//
// Concurrent calls for the same previous view share a single NEW_VIEW send
// and its result. Sequential calls always announce strictly increasing
// views.
type viewChanger struct {
	log       zerolog.Logger
	self      mhotstuff.ReplicaID
	asset     *mhotstuff.AssetDefinition
	committee *mhotstuff.Committee
	db        hotstuff.ChainDb
	provider  hotstuff.PayloadProvider
	outbound  hotstuff.OutboundService
	metrics   module.HotStuffMetrics

	group    singleflight.Group
	lock     sync.Mutex
	sent     bool
	lastSent mhotstuff.ViewID
}

func newViewChanger(
	log zerolog.Logger,
	self mhotstuff.ReplicaID,
	asset *mhotstuff.AssetDefinition,
	committee *mhotstuff.Committee,
	db hotstuff.ChainDb,
	provider hotstuff.PayloadProvider,
	outbound hotstuff.OutboundService,
	metrics module.HotStuffMetrics,
) *viewChanger {
	return &viewChanger{
		log:       log,
		self:      self,
		asset:     asset,
		committee: committee,
		db:        db,
		provider:  provider,
		outbound:  outbound,
		metrics:   metrics,
	}
}

// NextView leaves the view from (nil if the replica is not in a view yet)
// and returns an EventNewView for the view entered. On an empty chain
// database the genesis node is stored first and view 0 is entered.
// Returns:
//   - model.DigitalAssetError if the chain database or the outbound service failed
//   - model.ErrShutdown if ctx was cancelled during the send
func (c *viewChanger) NextView(ctx context.Context, from *mhotstuff.ViewID) (model.Event, error) {
	key := "start"
	if from != nil {
		key = strconv.FormatUint(uint64(*from), 10)
	}
	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		return c.advance(ctx, from)
	})
	if err != nil {
		return model.Event{}, err
	}
	if shared {
		c.log.Debug().Str("from", key).Msg("shared concurrent view change")
	}
	return model.NewViewEvent(result.(mhotstuff.View)), nil
}

func (c *viewChanger) advance(ctx context.Context, from *mhotstuff.ViewID) (mhotstuff.View, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	empty, err := c.db.IsEmpty()
	if err != nil {
		return mhotstuff.View{}, model.NewDigitalAssetErrorf("could not check chain database: %w", err)
	}
	if empty {
		err = c.storeGenesis()
		if err != nil {
			return mhotstuff.View{}, err
		}
	}

	highQC, err := c.db.FindHighestPreparedQC()
	if err != nil {
		return mhotstuff.View{}, model.NewDigitalAssetErrorf("could not find highest prepared QC: %w", err)
	}

	var target mhotstuff.ViewID
	switch {
	case from != nil:
		target = from.Next()
		if highQC.ViewNumber.Next() > target {
			target = highQC.ViewNumber.Next()
		}
	case empty:
		target = 0
	default:
		target = highQC.ViewNumber.Next()
	}
	if c.sent && target <= c.lastSent {
		target = c.lastSent.Next()
	}

	leader := c.committee.LeaderForView(target)
	message := mhotstuff.NewViewMessage(highQC, target, c.asset.PublicKey)
	err = c.outbound.Send(ctx, c.self, leader, message)
	if err != nil {
		if ctx.Err() != nil {
			return mhotstuff.View{}, model.ErrShutdown
		}
		return mhotstuff.View{}, model.NewDigitalAssetErrorf("could not send new view to %s: %w", leader, err)
	}
	c.sent = true
	c.lastSent = target
	c.metrics.NewViewSent()

	c.log.Debug().
		Uint64("view", uint64(target)).
		Str("leader", string(leader)).
		Uint64("high_qc_view", uint64(highQC.ViewNumber)).
		Msg("sent new view")

	return mhotstuff.View{ID: target, IsLeader: leader == c.self}, nil
}

// storeGenesis stores the genesis node as committed and makes its
// certificate the prepared and the locked QC.
func (c *viewChanger) storeGenesis() error {
	genesis := mhotstuff.Genesis(c.provider.CreateGenesisPayload(), mhotstuff.InitialStateRoot())
	qc := genesis.Justify()

	err := c.db.AddNode(genesis)
	if err != nil {
		return model.NewDigitalAssetErrorf("could not store genesis node: %w", err)
	}
	err = c.db.CommitNode(genesis)
	if err != nil {
		return model.NewDigitalAssetErrorf("could not commit genesis node: %w", err)
	}
	err = c.db.SetPreparedQC(qc)
	if err != nil {
		return model.NewDigitalAssetErrorf("could not store genesis QC: %w", err)
	}
	err = c.db.SetLockedQC(qc)
	if err != nil {
		return model.NewDigitalAssetErrorf("could not lock genesis QC: %w", err)
	}

	c.log.Info().Str("node", genesis.Hash().String()).Msg("created genesis node")
	return nil
}
