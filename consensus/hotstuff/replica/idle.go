package replica

import (
	"context"

	"github.com/tari-project/tari-core/consensus/hotstuff/model"
)

// idle waits for one phase timeout before the worker starts over. The
// replica is idle while it is not part of the committee or the asset has no
// checkpoint yet.
func (w *ConsensusWorker) idle(ctx context.Context) (model.Event, error) {
	w.pacemaker.StartPhase(ctx)
	select {
	case <-ctx.Done():
		return model.Event{}, model.ErrShutdown
	case <-w.pacemaker.TimeoutChannel():
		w.pacemaker.Stop()
		return model.NewEvent(model.EventTimedOut), nil
	}
}
