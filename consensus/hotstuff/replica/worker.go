package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	"github.com/tari-project/tari-core/consensus/hotstuff/pacemaker"
	"github.com/tari-project/tari-core/consensus/hotstuff/verification"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/module"
)

// Services are the collaborators of a consensus worker.
type Services struct {
	CommitteeManager hotstuff.CommitteeManager
	BaseNode         hotstuff.BaseNodeClient
	DbFactory        hotstuff.DbFactory
	PayloadProvider  hotstuff.PayloadProvider
	PayloadProcessor hotstuff.PayloadProcessor
	Outbound         hotstuff.OutboundService
	Inbound          hotstuff.InboundConnectionService
	Signer           hotstuff.SigningService
	Notifier         hotstuff.EventsPublisher
}

func (s Services) validate() error {
	switch {
	case s.CommitteeManager == nil:
		return model.NewConfigurationErrorf("missing committee manager")
	case s.BaseNode == nil:
		return model.NewConfigurationErrorf("missing base node client")
	case s.DbFactory == nil:
		return model.NewConfigurationErrorf("missing chain database factory")
	case s.PayloadProvider == nil || s.PayloadProcessor == nil:
		return model.NewConfigurationErrorf("missing payload provider or processor")
	case s.Outbound == nil || s.Inbound == nil:
		return model.NewConfigurationErrorf("missing outbound or inbound service")
	case s.Signer == nil:
		return model.NewConfigurationErrorf("missing signing service")
	case s.Notifier == nil:
		return model.NewConfigurationErrorf("missing events publisher")
	}
	return nil
}

// Config tunes a consensus worker.
type Config struct {
	// MaxRetries bounds how often a state failing with a DigitalAssetError is
	// run again before the worker restarts.
	MaxRetries uint64
	// RetryBackoff is the initial pause between retries. It doubles on every
	// retry.
	RetryBackoff time.Duration
	// DeferredCapacity bounds the messages held for later phases and views.
	DeferredCapacity int
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:       5,
		RetryBackoff:     50 * time.Millisecond,
		DeferredCapacity: DefaultDeferredCapacity,
	}
}

// session holds the components bound to the committee and the chain
// database read in the Starting state.
type session struct {
	committee   *mhotstuff.Committee
	db          hotstuff.ChainDb
	safety      hotstuff.SafetyRules
	viewChanger *viewChanger
}

// ConsensusWorker runs the HotStuff state machine of one replica for one
// asset. All states run on the goroutine calling Run.
type ConsensusWorker struct {
	log       zerolog.Logger
	self      mhotstuff.ReplicaID
	asset     *mhotstuff.AssetDefinition
	services  Services
	config    Config
	metrics   module.HotStuffMetrics
	pacemaker *pacemaker.Pacemaker
	verifier  hotstuff.Verifier
	inbox     *inbox

	state   model.WorkerState
	session *session
	view    mhotstuff.View
	// node is the node the replica accepted in the Prepare state of the
	// current view.
	node *mhotstuff.HotStuffTreeNode
	// proposal is the PREPARE message the replica broadcast as leader of the
	// current view.
	proposal *mhotstuff.HotStuffMessage
	// certificate is the last certificate message the replica broadcast as
	// leader of the current view.
	certificate *mhotstuff.HotStuffMessage
}

// NewConsensusWorker creates the worker of replica self for asset.
func NewConsensusWorker(
	log zerolog.Logger,
	self mhotstuff.ReplicaID,
	asset *mhotstuff.AssetDefinition,
	services Services,
	pacemaker *pacemaker.Pacemaker,
	metrics module.HotStuffMetrics,
	config Config,
) (*ConsensusWorker, error) {
	err := services.validate()
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, model.NewConfigurationErrorf("missing asset definition")
	}
	if config.RetryBackoff <= 0 {
		return nil, model.NewConfigurationErrorf("retry backoff must be positive, got %s", config.RetryBackoff)
	}
	if config.DeferredCapacity == 0 {
		config.DeferredCapacity = DefaultDeferredCapacity
	}

	log = log.With().
		Str("hotstuff", "replica").
		Str("replica", string(self)).
		Str("asset", asset.PublicKey.String()).
		Logger()
	in, err := newInbox(log, services.Inbound, asset.PublicKey, config.DeferredCapacity)
	if err != nil {
		return nil, err
	}

	return &ConsensusWorker{
		log:       log,
		self:      self,
		asset:     asset,
		services:  services,
		config:    config,
		metrics:   metrics,
		pacemaker: pacemaker,
		verifier:  verification.NewVerifier(services.Signer),
		inbox:     in,
		state:     model.StateStarting,
	}, nil
}

// State returns the current state. Only safe to call from the goroutine
// running the worker or after Run returned.
func (w *ConsensusWorker) State() model.WorkerState {
	return w.state
}

// Run drives the state machine until ctx is cancelled, in which case it
// returns nil. Protocol violations by other replicas and exhausted retries
// restart the worker in the Starting state. All other errors are
// unexpected and returned.
func (w *ConsensusWorker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.inbox.pump(ctx)
	}()
	defer func() {
		cancel()
		w.pacemaker.Stop()
		wg.Wait()
	}()

	w.log.Info().Msg("consensus worker started")
	for {
		event, err := w.runState(ctx)
		if err != nil {
			switch {
			case model.IsProtocolViolation(err):
				w.log.Warn().Err(err).
					Str("state", w.state.String()).
					Uint64("view", uint64(w.view.ID)).
					Msg("protocol violation, restarting consensus")
				w.restart()
				continue
			case model.IsDigitalAssetError(err):
				w.log.Error().Err(err).
					Str("state", w.state.String()).
					Uint64("view", uint64(w.view.ID)).
					Msg("giving up after retries, restarting consensus")
				w.restart()
				continue
			default:
				return fmt.Errorf("consensus worker failed in state %s: %w", w.state, err)
			}
		}

		if event.Kind == model.EventShutdownReceived {
			w.log.Info().Str("state", w.state.String()).Msg("consensus worker stopped")
			return nil
		}

		next, err := transition(w.state, event)
		if err != nil {
			return err
		}
		if event.NewView != nil {
			err = w.enterView(*event.NewView)
			if err != nil {
				return err
			}
		}
		w.moveTo(next, event)
	}
}

// runState runs the current state, retrying transient failures with an
// exponential backoff.
func (w *ConsensusWorker) runState(ctx context.Context) (model.Event, error) {
	backoff := retry.WithMaxRetries(w.config.MaxRetries, retry.NewExponential(w.config.RetryBackoff))

	var event model.Event
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		event, err = w.nextEvent(ctx)
		if model.IsDigitalAssetError(err) {
			w.log.Warn().Err(err).Str("state", w.state.String()).Msg("transient failure, retrying state")
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, model.ErrShutdown) || ctx.Err() != nil {
		return model.NewEvent(model.EventShutdownReceived), nil
	}
	return event, err
}

func (w *ConsensusWorker) nextEvent(ctx context.Context) (model.Event, error) {
	switch w.state {
	case model.StateStarting:
		return w.starting(ctx)
	case model.StateIdle:
		return w.idle(ctx)
	case model.StateNextView:
		return w.nextView(ctx)
	case model.StatePrepare:
		return w.prepare(ctx)
	case model.StatePreCommit:
		return w.certificatePhase(ctx, preCommitPhase)
	case model.StateCommit:
		return w.certificatePhase(ctx, commitPhase)
	case model.StateDecide:
		return w.certificatePhase(ctx, decidePhase)
	default:
		return model.Event{}, fmt.Errorf("unknown worker state %s", w.state)
	}
}

// transition returns the state following from on event.
func transition(from model.WorkerState, event model.Event) (model.WorkerState, error) {
	switch event.Kind {
	case model.EventNotPartOfCommittee:
		return model.StateIdle, nil
	case model.EventTimedOut:
		if from == model.StateIdle {
			return model.StateStarting, nil
		}
		return model.StateNextView, nil
	}

	switch {
	case from == model.StateStarting && event.Kind == model.EventInitialized:
		return model.StateNextView, nil
	case from == model.StateStarting && event.Kind == model.EventBaseLayerCheckpointNotFound:
		return model.StateIdle, nil
	case from == model.StateNextView && event.Kind == model.EventNewView && event.NewView != nil:
		return model.StatePrepare, nil
	case from == model.StatePrepare && event.Kind == model.EventPrepared:
		return model.StatePreCommit, nil
	case from == model.StatePreCommit && event.Kind == model.EventPreCommitted:
		return model.StateCommit, nil
	case from == model.StateCommit && event.Kind == model.EventCommitted:
		return model.StateDecide, nil
	case from == model.StateDecide && event.Kind == model.EventDecided:
		return model.StateNextView, nil
	}
	return from, fmt.Errorf("invalid transition from state %s on event %s", from, event)
}

func (w *ConsensusWorker) enterView(view mhotstuff.View) error {
	err := w.pacemaker.EnterView(view.ID)
	if err != nil {
		return fmt.Errorf("could not enter %s: %w", view.ID, err)
	}
	w.view = view
	w.node = nil
	w.proposal = nil
	w.certificate = nil
	return nil
}

func (w *ConsensusWorker) moveTo(next model.WorkerState, event model.Event) {
	from := w.state
	w.state = next
	w.metrics.StateTransition(from.String(), next.String())
	w.services.Notifier.Publish(model.StateChangedEvent{
		Asset: w.asset.PublicKey.String(),
		From:  from,
		To:    next,
		Event: event,
		View:  w.view.ID,
	})
}

// restart drops the session and returns to the Starting state. The
// pacemaker keeps its view so the next session resumes after it.
func (w *ConsensusWorker) restart() {
	w.pacemaker.Stop()
	w.session = nil
	w.node = nil
	w.proposal = nil
	w.certificate = nil
	from := w.state
	w.state = model.StateStarting
	w.metrics.StateTransition(from.String(), w.state.String())
}

// receive waits for a message of the current view until the running phase
// times out.
func (w *ConsensusWorker) receive(ctx context.Context, classify func(envelope) disposition) (envelope, error) {
	return w.inbox.receive(ctx, w.pacemaker.TimeoutChannel(), w.view.ID, classify)
}

// timedOut records the timeout of the current phase.
func (w *ConsensusWorker) timedOut() model.Event {
	w.pacemaker.OnTimeout(w.state)
	w.log.Info().
		Str("state", w.state.String()).
		Uint64("view", uint64(w.view.ID)).
		Msg("phase timed out")
	return model.NewEvent(model.EventTimedOut)
}

// awaitTimeout waits for the running phase to time out. Used when the
// replica cannot take part in the rest of the view.
func (w *ConsensusWorker) awaitTimeout(ctx context.Context) (model.Event, error) {
	select {
	case <-ctx.Done():
		return model.Event{}, model.ErrShutdown
	case <-w.pacemaker.TimeoutChannel():
		return w.timedOut(), nil
	}
}

// leader returns the leader of the current view.
func (w *ConsensusWorker) leader() mhotstuff.ReplicaID {
	return w.session.committee.LeaderForView(w.view.ID)
}

// sendVote signs a vote for node in phase and sends it to the leader.
// It returns false without error when the safety rules refused to vote.
func (w *ConsensusWorker) sendVote(ctx context.Context, phase mhotstuff.HotStuffMessageType, node mhotstuff.TreeNodeHash) (bool, error) {
	vote, err := w.session.safety.ProduceVote(phase, w.view.ID, node, w.asset.PublicKey)
	if model.IsNoVoteError(err) {
		w.log.Info().Err(err).
			Str("phase", phase.String()).
			Uint64("view", uint64(w.view.ID)).
			Msg("not voting")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not produce %s vote: %w", phase, err)
	}
	leader := w.leader()
	err = w.services.Outbound.Send(ctx, w.self, leader, vote)
	if err != nil {
		if ctx.Err() != nil {
			return false, model.ErrShutdown
		}
		return false, model.NewDigitalAssetErrorf("could not send %s vote to %s: %w", phase, leader, err)
	}
	return true, nil
}

// broadcast sends message to the whole committee, including the sender.
func (w *ConsensusWorker) broadcast(ctx context.Context, message *mhotstuff.HotStuffMessage) error {
	err := w.services.Outbound.Broadcast(ctx, w.self, w.session.committee.Members(), message)
	if err != nil {
		if ctx.Err() != nil {
			return model.ErrShutdown
		}
		return model.NewDigitalAssetErrorf("could not broadcast %s: %w", message, err)
	}
	return nil
}
