package replica

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	"github.com/tari-project/tari-core/engine/common/fifoqueue"
	"github.com/tari-project/tari-core/model/chain"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

// DefaultDeferredCapacity bounds the messages held back for a later phase
// or view.
const DefaultDeferredCapacity = 1024

// receiveFailurePause is the pause after the inbound service failed, so a
// broken connection does not spin the pump.
const receiveFailurePause = 100 * time.Millisecond

var errTimedOut = errors.New("phase timed out")

type envelope struct {
	from    mhotstuff.ReplicaID
	message *mhotstuff.HotStuffMessage
}

// disposition is a phase's decision about a message of the current view.
type disposition uint8

const (
	// deferMessage keeps the message for a later phase.
	deferMessage disposition = iota
	acceptMessage
	dropMessage
)

// inbox buffers the messages of a replica. A pump goroutine moves messages
// from the inbound service onto a channel; the worker goroutine reads them
// with receive. Messages that arrive early for a later phase or view are
// deferred in a bounded FIFO queue and offered again on the next receive.
type inbox struct {
	log      zerolog.Logger
	inbound  hotstuff.InboundConnectionService
	asset    chain.PublicKey
	messages chan envelope
	deferred *fifoqueue.FifoQueue[envelope]
}

func newInbox(log zerolog.Logger, inbound hotstuff.InboundConnectionService, asset chain.PublicKey, capacity int) (*inbox, error) {
	deferred, err := fifoqueue.NewFifoQueue[envelope](fifoqueue.WithCapacity(capacity))
	if err != nil {
		return nil, model.NewConfigurationError(fmt.Errorf("could not create deferred message queue: %w", err))
	}
	return &inbox{
		log:      log,
		inbound:  inbound,
		asset:    asset,
		messages: make(chan envelope),
		deferred: deferred,
	}, nil
}

// pump reads from the inbound service until ctx is cancelled.
func (i *inbox) pump(ctx context.Context) {
	for {
		from, message, err := i.inbound.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			i.log.Error().Err(err).Msg("could not receive message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveFailurePause):
			}
			continue
		}
		if message == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case i.messages <- envelope{from: from, message: message}:
		}
	}
}

// receive returns the first message of view the classifier accepts. Older
// views and other assets are discarded, later views are deferred. Returns
// errTimedOut when timeout fires and model.ErrShutdown when ctx is done.
func (i *inbox) receive(
	ctx context.Context,
	timeout <-chan time.Time,
	view mhotstuff.ViewID,
	classify func(envelope) disposition,
) (envelope, error) {
	if e, ok := i.takeDeferred(view, classify); ok {
		return e, nil
	}
	for {
		select {
		case <-ctx.Done():
			return envelope{}, model.ErrShutdown
		case <-timeout:
			return envelope{}, errTimedOut
		case e := <-i.messages:
			switch {
			case e.message.AssetID != i.asset:
				i.log.Warn().
					Str("peer_id", string(e.from)).
					Str("message_asset", e.message.AssetID.String()).
					Msg("dropping message for another asset")
			case e.message.ViewNumber < view:
				i.log.Debug().
					Str("peer_id", string(e.from)).
					Stringer("message", e.message).
					Uint64("view", uint64(view)).
					Msg("dropping message from a past view")
			case e.message.ViewNumber > view:
				i.postpone(e)
			default:
				switch classify(e) {
				case acceptMessage:
					return e, nil
				case deferMessage:
					i.postpone(e)
				}
			}
		}
	}
}

// takeDeferred scans the deferred queue once, in arrival order, for a
// message the classifier accepts. Messages from past views and dropped
// messages are removed, all others keep their order.
func (i *inbox) takeDeferred(view mhotstuff.ViewID, classify func(envelope) disposition) (envelope, bool) {
	var (
		found envelope
		ok    bool
	)
	for n := i.deferred.Len(); n > 0; n-- {
		e, _ := i.deferred.Pop()
		if e.message.ViewNumber < view {
			continue
		}
		if !ok && e.message.ViewNumber == view {
			switch classify(e) {
			case acceptMessage:
				found, ok = e, true
				continue
			case dropMessage:
				continue
			}
		}
		i.deferred.Push(e)
	}
	return found, ok
}

func (i *inbox) postpone(e envelope) {
	if !i.deferred.Push(e) {
		i.log.Warn().
			Str("peer_id", string(e.from)).
			Stringer("message", e.message).
			Msg("deferred message queue full, dropping message")
	}
}
