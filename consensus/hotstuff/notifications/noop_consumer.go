package notifications

import (
	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
)

// NoopConsumer is an events publisher that drops every event.
type NoopConsumer struct{}

var _ hotstuff.EventsPublisher = (*NoopConsumer)(nil)

func NewNoopConsumer() *NoopConsumer {
	return &NoopConsumer{}
}

func (*NoopConsumer) Publish(model.StateChangedEvent) {}
