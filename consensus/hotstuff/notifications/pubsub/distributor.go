package pubsub

import (
	"sync"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
)

// Distributor ingests state transitions of a consensus worker and
// distributes them to subscribers. Subscribers are called synchronously in
// the order they subscribed, so they must not block.
// Concurrently safe.
type Distributor struct {
	subscribers []hotstuff.EventsPublisher
	lock        sync.RWMutex
}

var _ hotstuff.EventsPublisher = (*Distributor)(nil)

func NewDistributor() *Distributor {
	return &Distributor{}
}

// AddConsumer subscribes consumer to all events.
func (d *Distributor) AddConsumer(consumer hotstuff.EventsPublisher) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.subscribers = append(d.subscribers, consumer)
}

// AddOnStateChangedConsumer subscribes a callback to all events.
func (d *Distributor) AddOnStateChangedConsumer(consumer func(model.StateChangedEvent)) {
	d.AddConsumer(consumerFunc(consumer))
}

func (d *Distributor) Publish(event model.StateChangedEvent) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, subscriber := range d.subscribers {
		subscriber.Publish(event)
	}
}

type consumerFunc func(model.StateChangedEvent)

func (f consumerFunc) Publish(event model.StateChangedEvent) { f(event) }
