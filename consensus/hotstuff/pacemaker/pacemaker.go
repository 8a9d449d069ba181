package pacemaker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	"github.com/tari-project/tari-core/consensus/hotstuff/pacemaker/timeout"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/module"
)

// Pacemaker tracks the current view of a replica and bounds every phase
// with the timeout controller. Phase durations grow exponentially while
// views fail and shrink again on progress.
type Pacemaker struct {
	timeoutControl *timeout.Controller
	metrics        module.HotStuffMetrics
	curView        *atomic.Uint64
	started        *atomic.Bool
	phaseStarted   time.Time
}

// New creates a new Pacemaker instance
func New(timeoutController *timeout.Controller, metrics module.HotStuffMetrics) *Pacemaker {
	return &Pacemaker{
		timeoutControl: timeoutController,
		metrics:        metrics,
		curView:        atomic.NewUint64(0),
		started:        atomic.NewBool(false),
	}
}

// CurView returns the current view, and false before the first view was
// entered.
func (p *Pacemaker) CurView() (mhotstuff.ViewID, bool) {
	return mhotstuff.ViewID(p.curView.Load()), p.started.Load()
}

// EnterView moves the replica to view. Views strictly increase, except that
// the first view entered may be any view.
func (p *Pacemaker) EnterView(view mhotstuff.ViewID) error {
	if p.started.Load() && uint64(view) <= p.curView.Load() {
		return fmt.Errorf("cannot move from view %d to %d: views must strictly increase", p.curView.Load(), view)
	}
	p.curView.Store(uint64(view))
	p.started.Store(true)
	p.metrics.SetCurView(uint64(view))
	return nil
}

// StartPhase starts the timeout of a phase of the current view.
func (p *Pacemaker) StartPhase(ctx context.Context) model.TimerInfo {
	info := p.timeoutControl.StartTimeout(ctx, mhotstuff.ViewID(p.curView.Load()))
	p.phaseStarted = info.StartTime
	return info
}

// TimeoutChannel ticks once when the running phase times out.
func (p *Pacemaker) TimeoutChannel() <-chan time.Time {
	return p.timeoutControl.Channel()
}

// OnPhaseComplete stops the phase timer and reports its duration.
func (p *Pacemaker) OnPhaseComplete(state model.WorkerState) {
	p.timeoutControl.Stop()
	if !p.phaseStarted.IsZero() {
		p.metrics.PhaseDuration(state.String(), time.Since(p.phaseStarted))
	}
}

// OnTimeout records a failed view.
func (p *Pacemaker) OnTimeout(state model.WorkerState) {
	p.timeoutControl.Stop()
	p.timeoutControl.OnTimeout()
	p.metrics.TimeoutOccurred(state.String())
}

// OnViewDecided records a view that committed a node.
func (p *Pacemaker) OnViewDecided() {
	p.timeoutControl.OnProgressBeforeTimeout()
}

// Stop cancels the running phase timer.
func (p *Pacemaker) Stop() {
	p.timeoutControl.Stop()
}
