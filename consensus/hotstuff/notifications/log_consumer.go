package notifications

import (
	"github.com/rs/zerolog"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
)

// LogConsumer is an events publisher that logs a message for each state
// transition of the worker.
type LogConsumer struct {
	log zerolog.Logger
}

var _ hotstuff.EventsPublisher = (*LogConsumer)(nil)

func NewLogConsumer(log zerolog.Logger) *LogConsumer {
	lc := &LogConsumer{
		log: log.With().Str("component", "hotstuff_events").Logger(),
	}
	return lc
}

func (lc *LogConsumer) Publish(event model.StateChangedEvent) {
	entry := lc.log.Debug()
	if event.Event.Kind == model.EventTimedOut || event.To == model.StateIdle {
		entry = lc.log.Info()
	}
	entry.
		Str("asset", event.Asset).
		Uint64("view", uint64(event.View)).
		Str("from", event.From.String()).
		Str("to", event.To.String()).
		Str("event", event.Event.String()).
		Msg("consensus state changed")
}
