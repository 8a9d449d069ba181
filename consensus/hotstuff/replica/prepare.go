package replica

import (
	"context"
	"errors"
	"fmt"

	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/storage"
)

// errUnknownParent is returned when a proposal extends a node the replica
// never stored. The replica sits the view out.
var errUnknownParent = errors.New("parent node is unknown")

// prepare runs the Prepare phase. The leader collects a quorum of NEW_VIEW
// messages, proposes a node extending the highest prepared QC among them and
// broadcasts the proposal. Every replica, the leader included, then
// validates the proposal, stores the node and votes for it.
func (w *ConsensusWorker) prepare(ctx context.Context) (model.Event, error) {
	w.pacemaker.StartPhase(ctx)

	if w.view.IsLeader {
		if w.proposal == nil {
			highQC, err := w.collectNewViews(ctx)
			if errors.Is(err, errTimedOut) {
				return w.timedOut(), nil
			}
			if err != nil {
				return model.Event{}, err
			}
			proposal, err := w.createProposal(ctx, highQC)
			if errors.Is(err, errUnknownParent) {
				w.log.Warn().
					Str("node", highQC.NodeHash.String()).
					Uint64("view", uint64(w.view.ID)).
					Msg("cannot propose, node of the highest QC is unknown")
				return w.awaitTimeout(ctx)
			}
			if err != nil {
				return model.Event{}, err
			}
			w.proposal = proposal
		}
		err := w.broadcast(ctx, w.proposal)
		if err != nil {
			return model.Event{}, err
		}
	}

	leader := w.leader()
	e, err := w.receive(ctx, func(e envelope) disposition {
		if e.message.Type != mhotstuff.MessageTypePrepare || e.message.IsVote() {
			return deferMessage
		}
		if e.from != leader {
			w.log.Warn().
				Str("peer_id", string(e.from)).
				Str("leader", string(leader)).
				Msg("dropping proposal from a replica that is not the leader")
			return dropMessage
		}
		return acceptMessage
	})
	if errors.Is(err, errTimedOut) {
		return w.timedOut(), nil
	}
	if err != nil {
		return model.Event{}, err
	}

	err = w.processProposal(ctx, e)
	if errors.Is(err, errUnknownParent) {
		w.log.Warn().
			Str("peer_id", string(e.from)).
			Str("parent", e.message.Justify.NodeHash.String()).
			Msg("not voting for a proposal with an unknown parent")
		return w.awaitTimeout(ctx)
	}
	if err != nil {
		return model.Event{}, err
	}

	voted, err := w.sendVote(ctx, mhotstuff.MessageTypePrepare, w.node.Hash())
	if err != nil {
		return model.Event{}, err
	}
	if !voted {
		return w.awaitTimeout(ctx)
	}
	w.pacemaker.OnPhaseComplete(model.StatePrepare)
	return model.NewEvent(model.EventPrepared), nil
}

// collectNewViews waits for NEW_VIEW messages of a quorum of distinct
// members and returns the highest prepared QC they carry. Invalid NEW_VIEW
// messages are dropped.
func (w *ConsensusWorker) collectNewViews(ctx context.Context) (*mhotstuff.QuorumCertificate, error) {
	committee := w.session.committee
	senders := make(map[mhotstuff.ReplicaID]struct{}, committee.Len())
	var highQC *mhotstuff.QuorumCertificate

	for len(senders) < committee.ConsensusThreshold() {
		e, err := w.receive(ctx, func(e envelope) disposition {
			if e.message.Type != mhotstuff.MessageTypeNewView {
				return deferMessage
			}
			return acceptMessage
		})
		if err != nil {
			return nil, err
		}

		log := w.log.With().Str("peer_id", string(e.from)).Uint64("view", uint64(w.view.ID)).Logger()
		justify := e.message.Justify
		switch {
		case !committee.Contains(e.from):
			log.Warn().Msg("dropping new view from a replica outside the committee")
			continue
		case justify == nil:
			log.Warn().Msg("dropping new view without a prepared QC")
			continue
		case justify.MessageType != mhotstuff.MessageTypePrepare && !justify.IsGenesis():
			log.Warn().Str("qc_type", justify.MessageType.String()).Msg("dropping new view carrying a QC that is not a prepare QC")
			continue
		}
		if _, ok := senders[e.from]; ok {
			continue
		}
		err = w.verifier.VerifyQC(committee, justify)
		if err != nil {
			log.Warn().Err(err).Msg("dropping new view with an invalid QC")
			continue
		}

		senders[e.from] = struct{}{}
		if highQC == nil || justify.ViewNumber > highQC.ViewNumber {
			highQC = justify
		}
	}

	w.log.Debug().
		Uint64("view", uint64(w.view.ID)).
		Int("new_views", len(senders)).
		Uint64("high_qc_view", uint64(highQC.ViewNumber)).
		Msg("collected new views")
	return highQC, nil
}

// createProposal builds the PREPARE message for a new node extending the
// node certified by highQC.
func (w *ConsensusWorker) createProposal(ctx context.Context, highQC *mhotstuff.QuorumCertificate) (*mhotstuff.HotStuffMessage, error) {
	parent, err := w.session.db.Node(highQC.NodeHash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errUnknownParent
	}
	if err != nil {
		return nil, model.NewDigitalAssetErrorf("could not read node %s: %w", highQC.NodeHash, err)
	}

	payload, err := w.services.PayloadProvider.CreatePayload(ctx)
	if err != nil {
		return nil, model.NewDigitalAssetErrorf("could not create payload: %w", err)
	}
	root, err := w.services.PayloadProcessor.ProcessPayload(ctx, payload)
	if err != nil {
		return nil, model.NewDigitalAssetErrorf("could not process payload: %w", err)
	}

	node := mhotstuff.FromParent(parent.Hash(), payload, root, parent.Height()+1, highQC)
	w.log.Info().
		Uint64("view", uint64(w.view.ID)).
		Str("node", node.Hash().String()).
		Uint32("height", node.Height()).
		Msg("proposing node")
	return mhotstuff.PrepareMessage(node, highQC, w.view.ID, w.asset.PublicKey), nil
}

// processProposal validates the leader's PREPARE message and stores the
// proposed node.
// Returns:
//   - model.MissingQuorumCertificateError, model.InvalidMessageError,
//     model.InvalidQuorumCertificateError or
//     model.PreparePhaseNodeNotSafeError if the leader broke the protocol
//   - errUnknownParent if the proposed node extends a node the replica
//     does not have
//   - model.DigitalAssetError if the chain database or the payload
//     processor failed
func (w *ConsensusWorker) processProposal(ctx context.Context, e envelope) error {
	message := e.message
	view := w.view.ID
	if message.Node == nil || message.Justify == nil {
		return model.MissingQuorumCertificateError{View: view, Phase: mhotstuff.MessageTypePrepare}
	}
	node := message.Node
	justify := message.Justify

	switch {
	case !node.IsConsistent():
		return model.NewInvalidMessageErrorf(e.from, view, "proposed node hash does not match its content")
	case node.Hash() != message.NodeHash:
		return model.NewInvalidMessageErrorf(e.from, view, "proposal names node %s but carries %s", message.NodeHash, node.Hash())
	case node.Justify() == nil || node.Justify().Hash() != justify.Hash():
		return model.NewInvalidMessageErrorf(e.from, view, "proposed node is not justified by the proposal's QC")
	case !node.Extends(justify.NodeHash):
		return model.NewInvalidMessageErrorf(e.from, view, "proposed node does not extend the node of its QC %s", justify.NodeHash)
	case justify.MessageType != mhotstuff.MessageTypePrepare && !justify.IsGenesis():
		return model.NewInvalidQuorumCertificateErrorf(justify, "proposal must be justified by a prepare QC")
	}

	err := w.verifier.VerifyQC(w.session.committee, justify)
	if err != nil {
		return fmt.Errorf("proposal carries an invalid QC: %w", err)
	}

	db := w.session.db
	parent, err := db.Node(justify.NodeHash)
	if errors.Is(err, storage.ErrNotFound) {
		return errUnknownParent
	}
	if err != nil {
		return model.NewDigitalAssetErrorf("could not read parent node %s: %w", justify.NodeHash, err)
	}
	if justify.IsGenesis() && !parent.IsGenesis() {
		return model.NewInvalidQuorumCertificateErrorf(justify, "genesis QC certifies node %s which is not the genesis node", parent.Hash())
	}
	if node.Height() != parent.Height()+1 {
		return model.NewInvalidMessageErrorf(e.from, view, "proposed node at height %d extends a node at height %d", node.Height(), parent.Height())
	}

	lockedQC, err := db.GetLockedQC()
	if err != nil {
		return model.NewDigitalAssetErrorf("could not read locked QC: %w", err)
	}
	err = w.session.safety.IsSafeNode(view, node, lockedQC)
	if err != nil {
		return err
	}

	root, err := w.services.PayloadProcessor.ProcessPayload(ctx, node.Payload())
	if err != nil {
		return model.NewDigitalAssetErrorf("could not process proposed payload: %w", err)
	}
	if root != node.StateRoot() {
		return model.NewInvalidMessageErrorf(e.from, view, "proposed state root %s does not match the executed state root %s", node.StateRoot(), root)
	}

	err = db.AddNode(node)
	if err != nil {
		return model.NewDigitalAssetErrorf("could not store proposed node: %w", err)
	}
	err = db.SetPreparedQC(justify)
	if err != nil {
		return model.NewDigitalAssetErrorf("could not store prepared QC: %w", err)
	}
	w.node = node

	w.log.Debug().
		Uint64("view", uint64(view)).
		Str("node", node.Hash().String()).
		Uint32("height", node.Height()).
		Msg("accepted proposal")
	return nil
}
