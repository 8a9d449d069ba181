package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	"github.com/tari-project/tari-core/consensus/hotstuff/notifications"
	"github.com/tari-project/tari-core/utils/unittest"
)

func TestDistributor(t *testing.T) {
	d := NewDistributor()
	d.AddConsumer(notifications.NewLogConsumer(unittest.Logger()))
	d.AddConsumer(notifications.NewNoopConsumer())

	var first, second []model.StateChangedEvent
	d.AddOnStateChangedConsumer(func(e model.StateChangedEvent) { first = append(first, e) })
	d.AddOnStateChangedConsumer(func(e model.StateChangedEvent) { second = append(second, e) })

	events := []model.StateChangedEvent{
		{From: model.StateStarting, To: model.StateNextView, Event: model.NewEvent(model.EventInitialized)},
		{From: model.StatePrepare, To: model.StateNextView, Event: model.NewEvent(model.EventTimedOut), View: 3},
	}
	for _, e := range events {
		d.Publish(e)
	}
	assert.Equal(t, events, first)
	assert.Equal(t, events, second)
}
