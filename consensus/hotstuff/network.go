package hotstuff

import (
	"context"

	"github.com/tari-project/tari-core/model/hotstuff"
)

// OutboundService delivers messages to committee members. A message
// addressed to the sender itself must be delivered to its own inbox.
type OutboundService interface {
	Send(ctx context.Context, from hotstuff.ReplicaID, to hotstuff.ReplicaID, message *hotstuff.HotStuffMessage) error

	// Broadcast sends the message to every member, including the sender if it
	// is part of members. Delivery is best effort: all members are tried and
	// the failures are returned together.
	Broadcast(ctx context.Context, from hotstuff.ReplicaID, members []hotstuff.ReplicaID, message *hotstuff.HotStuffMessage) error
}

// InboundConnectionService yields the messages addressed to the replica.
type InboundConnectionService interface {
	// ReceiveMessage blocks until a message arrives or ctx is done.
	ReceiveMessage(ctx context.Context) (hotstuff.ReplicaID, *hotstuff.HotStuffMessage, error)
}
