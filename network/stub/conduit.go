package stub

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/engine/common/fifoqueue"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

type delivery struct {
	from    mhotstuff.ReplicaID
	message *mhotstuff.HotStuffMessage
}

// Conduit is the network endpoint of one replica. It sends through the hub
// and buffers the replica's incoming messages in a FIFO inbox.
type Conduit struct {
	id       mhotstuff.ReplicaID
	hub      *Hub
	inbox    *fifoqueue.FifoQueue[delivery]
	notify   chan struct{}
	received *atomic.Uint64
}

var (
	_ hotstuff.OutboundService          = (*Conduit)(nil)
	_ hotstuff.InboundConnectionService = (*Conduit)(nil)
)

func newConduit(id mhotstuff.ReplicaID, hub *Hub) (*Conduit, error) {
	inbox, err := fifoqueue.NewFifoQueue[delivery](
		fifoqueue.WithCapacity(hub.inboxCapacity),
		fifoqueue.WithLengthObserver(func(length int) { hub.metrics.InboxLength(string(id), length) }),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create inbox of %s: %w", id, err)
	}
	return &Conduit{
		id:       id,
		hub:      hub,
		inbox:    inbox,
		notify:   make(chan struct{}, 1),
		received: atomic.NewUint64(0),
	}, nil
}

// ID returns the replica the conduit belongs to.
func (c *Conduit) ID() mhotstuff.ReplicaID {
	return c.id
}

// Received returns the number of messages handed to the replica.
func (c *Conduit) Received() uint64 {
	return c.received.Load()
}

func (c *Conduit) Send(ctx context.Context, from mhotstuff.ReplicaID, to mhotstuff.ReplicaID, message *mhotstuff.HotStuffMessage) error {
	if from != c.id {
		return fmt.Errorf("conduit of %s cannot send on behalf of %s", c.id, from)
	}
	return c.hub.deliver(ctx, from, to, message)
}

// Broadcast sends message to every member and returns all failures.
func (c *Conduit) Broadcast(ctx context.Context, from mhotstuff.ReplicaID, members []mhotstuff.ReplicaID, message *mhotstuff.HotStuffMessage) error {
	var result *multierror.Error
	for _, member := range members {
		err := c.Send(ctx, from, member, message)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not send to %s: %w", member, err))
		}
	}
	return result.ErrorOrNil()
}

func (c *Conduit) ReceiveMessage(ctx context.Context) (mhotstuff.ReplicaID, *mhotstuff.HotStuffMessage, error) {
	for {
		if d, ok := c.inbox.Pop(); ok {
			c.received.Inc()
			c.hub.metrics.MessageReceived(d.message.Type.String())
			return d.from, d.message, nil
		}
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-c.notify:
		}
	}
}

func (c *Conduit) enqueue(from mhotstuff.ReplicaID, message *mhotstuff.HotStuffMessage) error {
	if !c.inbox.Push(delivery{from: from, message: message}) {
		return fmt.Errorf("could not deliver %s to %s: %w", message, c.id, ErrInboxFull)
	}
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}
