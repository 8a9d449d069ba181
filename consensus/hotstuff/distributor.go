package hotstuff

import "github.com/tari-project/tari-core/consensus/hotstuff/model"

// EventsPublisher is notified of every state transition of a consensus
// worker. Implementations must not block.
type EventsPublisher interface {
	Publish(event model.StateChangedEvent)
}
