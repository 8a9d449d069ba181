package replica

import (
	"context"
	"fmt"

	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	"github.com/tari-project/tari-core/consensus/hotstuff/safetyrules"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

// starting reads the committee of the asset from its latest base layer
// checkpoint and opens the asset's chain database.
func (w *ConsensusWorker) starting(ctx context.Context) (model.Event, error) {
	tip, err := w.services.BaseNode.GetTipInfo(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return model.Event{}, model.ErrShutdown
		}
		return model.Event{}, model.NewDigitalAssetErrorf("could not get base layer tip: %w", err)
	}

	checkpoint, err := w.services.BaseNode.GetCurrentCheckpoint(ctx, tip.HeightOfLongestChain, w.asset)
	if err != nil {
		if ctx.Err() != nil {
			return model.Event{}, model.ErrShutdown
		}
		return model.Event{}, model.NewDigitalAssetErrorf("could not get checkpoint at height %d: %w", tip.HeightOfLongestChain, err)
	}
	if checkpoint == nil {
		w.log.Warn().
			Uint64("height", tip.HeightOfLongestChain).
			Msg("no checkpoint found for asset")
		return model.NewEvent(model.EventBaseLayerCheckpointNotFound), nil
	}

	err = w.services.CommitteeManager.ReadFromCheckpoint(checkpoint)
	if err != nil {
		return model.Event{}, model.NewDigitalAssetErrorf("could not read committee from checkpoint: %w", err)
	}
	committee, err := w.services.CommitteeManager.CurrentCommittee()
	if err != nil {
		return model.Event{}, model.NewDigitalAssetErrorf("could not get current committee: %w", err)
	}
	if !committee.Contains(w.self) {
		w.log.Info().Int("committee_size", committee.Len()).Msg("replica is not part of the committee")
		return model.NewEvent(model.EventNotPartOfCommittee), nil
	}

	db, err := w.services.DbFactory.GetOrCreateChainDb(w.asset.PublicKey)
	if err != nil {
		return model.Event{}, model.NewDigitalAssetErrorf("could not open chain database: %w", err)
	}
	safety, err := safetyrules.New(w.self, w.services.Signer, db)
	if err != nil {
		return model.Event{}, model.NewDigitalAssetError(fmt.Errorf("could not create safety rules: %w", err))
	}

	w.session = &session{
		committee: committee,
		db:        db,
		safety:    safety,
		viewChanger: newViewChanger(
			w.log,
			w.self,
			w.asset,
			committee,
			db,
			w.services.PayloadProvider,
			w.services.Outbound,
			w.metrics,
		),
	}

	w.log.Info().
		Uint64("height", tip.HeightOfLongestChain).
		Int("committee_size", committee.Len()).
		Int("threshold", committee.ConsensusThreshold()).
		Msg("consensus initialized")
	return model.NewEvent(model.EventInitialized), nil
}

// nextView leaves the current view, if any, and announces the next one.
func (w *ConsensusWorker) nextView(ctx context.Context) (model.Event, error) {
	var from *mhotstuff.ViewID
	if view, ok := w.pacemaker.CurView(); ok {
		from = &view
	}
	return w.session.viewChanger.NextView(ctx, from)
}
