package replica

import (
	"context"
	"errors"
	"fmt"

	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	"github.com/tari-project/tari-core/consensus/hotstuff/votecollector"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

// certificatePhase describes one of the phases following Prepare. The
// leader certifies the votes of the previous phase and broadcasts the QC in
// a message of the phase's type.
type certificatePhase struct {
	state   model.WorkerState
	message mhotstuff.HotStuffMessageType
	votes   mhotstuff.HotStuffMessageType
	done    model.EventKind
}

var (
	preCommitPhase = certificatePhase{
		state:   model.StatePreCommit,
		message: mhotstuff.MessageTypePreCommit,
		votes:   mhotstuff.MessageTypePrepare,
		done:    model.EventPreCommitted,
	}
	commitPhase = certificatePhase{
		state:   model.StateCommit,
		message: mhotstuff.MessageTypeCommit,
		votes:   mhotstuff.MessageTypePreCommit,
		done:    model.EventCommitted,
	}
	decidePhase = certificatePhase{
		state:   model.StateDecide,
		message: mhotstuff.MessageTypeDecide,
		votes:   mhotstuff.MessageTypeCommit,
		done:    model.EventDecided,
	}
)

// certificatePhase runs PreCommit, Commit or Decide. On the certificate of
// the previous phase, replicas keep the prepare QC (PreCommit), lock on the
// pre-commit QC (Commit) or commit the node (Decide). They vote in
// PreCommit and Commit.
func (w *ConsensusWorker) certificatePhase(ctx context.Context, phase certificatePhase) (model.Event, error) {
	w.pacemaker.StartPhase(ctx)
	if w.node == nil {
		w.log.Warn().Str("state", phase.state.String()).Msg("no node accepted in this view")
		return w.awaitTimeout(ctx)
	}

	if w.view.IsLeader {
		if w.certificate == nil || w.certificate.Type != phase.message {
			qc, err := w.collectVotes(ctx, phase.votes)
			if errors.Is(err, errTimedOut) {
				return w.timedOut(), nil
			}
			if err != nil {
				return model.Event{}, err
			}
			w.certificate = mhotstuff.CertificateMessage(phase.message, qc, w.view.ID, w.asset.PublicKey)
		}
		err := w.broadcast(ctx, w.certificate)
		if err != nil {
			return model.Event{}, err
		}
	}

	leader := w.leader()
	e, err := w.receive(ctx, func(e envelope) disposition {
		if e.message.Type != phase.message || e.message.IsVote() {
			return deferMessage
		}
		if e.from != leader {
			w.log.Warn().
				Str("peer_id", string(e.from)).
				Str("leader", string(leader)).
				Str("phase", phase.message.String()).
				Msg("dropping certificate from a replica that is not the leader")
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

	qc, err := w.checkCertificate(e, phase)
	if err != nil {
		return model.Event{}, err
	}

	db := w.session.db
	switch phase.state {
	case model.StatePreCommit:
		err = db.SetPreparedQC(qc)
		if err != nil {
			return model.Event{}, model.NewDigitalAssetErrorf("could not store prepare QC: %w", err)
		}
	case model.StateCommit:
		err = db.SetLockedQC(qc)
		if err != nil {
			return model.Event{}, model.NewDigitalAssetErrorf("could not lock on pre-commit QC: %w", err)
		}
	case model.StateDecide:
		err = db.CommitNode(w.node)
		if err != nil {
			return model.Event{}, model.NewDigitalAssetErrorf("could not commit node %s: %w", w.node.Hash(), err)
		}
		w.metrics.NodeCommitted(uint64(w.node.Height()))
		w.pacemaker.OnViewDecided()
		w.log.Info().
			Uint64("view", uint64(w.view.ID)).
			Str("node", w.node.Hash().String()).
			Uint32("height", w.node.Height()).
			Msg("node committed")
		w.pacemaker.OnPhaseComplete(phase.state)
		return model.NewEvent(phase.done), nil
	}

	voted, err := w.sendVote(ctx, phase.message, w.node.Hash())
	if err != nil {
		return model.Event{}, err
	}
	if !voted {
		return w.awaitTimeout(ctx)
	}
	w.pacemaker.OnPhaseComplete(phase.state)
	return model.NewEvent(phase.done), nil
}

// collectVotes aggregates the votes of the given type for the node of the
// current view into a QC. Invalid votes are dropped.
func (w *ConsensusWorker) collectVotes(ctx context.Context, votes mhotstuff.HotStuffMessageType) (*mhotstuff.QuorumCertificate, error) {
	collector := votecollector.NewVoteCollector(w.verifier, w.session.committee, votes, w.view.ID, w.node.Hash())
	for {
		e, err := w.receive(ctx, func(e envelope) disposition {
			if !e.message.IsVote() || e.message.Type != votes {
				return deferMessage
			}
			return acceptMessage
		})
		if err != nil {
			return nil, err
		}

		qc, err := collector.AddVote(e.from, e.message)
		if err != nil {
			w.log.Warn().Err(err).
				Str("peer_id", string(e.from)).
				Str("phase", votes.String()).
				Msg("dropping invalid vote")
			continue
		}
		if qc != nil {
			w.metrics.QCCreated(votes.String())
			w.log.Debug().Stringer("qc", qc).Msg("created quorum certificate")
			return qc, nil
		}
	}
}

// checkCertificate validates the QC carried by the leader's message of
// phase against the node accepted in this view.
func (w *ConsensusWorker) checkCertificate(e envelope, phase certificatePhase) (*mhotstuff.QuorumCertificate, error) {
	qc := e.message.Justify
	view := w.view.ID
	switch {
	case qc == nil:
		return nil, model.MissingQuorumCertificateError{View: view, Phase: phase.message}
	case qc.ViewNumber < view:
		return nil, model.StaleViewError{View: qc.ViewNumber, Current: view}
	case qc.MessageType != phase.votes || qc.ViewNumber != view:
		return nil, model.NewInvalidQuorumCertificateErrorf(qc, "%s message must carry the %s QC of %s", phase.message, phase.votes, view)
	case qc.NodeHash != w.node.Hash():
		return nil, model.NewInvalidQuorumCertificateErrorf(qc, "certifies node %s, expected %s", qc.NodeHash, w.node.Hash())
	}
	err := w.verifier.VerifyQC(w.session.committee, qc)
	if err != nil {
		return nil, fmt.Errorf("%s message carries an invalid QC: %w", phase.message, err)
	}
	return qc, nil
}
