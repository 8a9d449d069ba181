package pacemaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	"github.com/tari-project/tari-core/consensus/hotstuff/pacemaker/timeout"
	"github.com/tari-project/tari-core/module/metrics"
)

func newPacemaker(t *testing.T) *Pacemaker {
	cfg, err := timeout.NewConfig(20*time.Millisecond, 200*time.Millisecond, 2, 0)
	require.NoError(t, err)
	return New(timeout.NewController(cfg), metrics.NewNoopCollector())
}

func TestPacemaker_EnterView(t *testing.T) {
	p := newPacemaker(t)
	_, started := p.CurView()
	assert.False(t, started)

	require.NoError(t, p.EnterView(0))
	view, started := p.CurView()
	assert.True(t, started)
	assert.EqualValues(t, 0, view)

	require.NoError(t, p.EnterView(4))
	assert.Error(t, p.EnterView(4))
	assert.Error(t, p.EnterView(2))
	view, _ = p.CurView()
	assert.EqualValues(t, 4, view)
}

func TestPacemaker_PhaseTimeout(t *testing.T) {
	p := newPacemaker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.EnterView(1))

	info := p.StartPhase(ctx)
	assert.EqualValues(t, 1, info.View)
	assert.Equal(t, 20*time.Millisecond, info.Duration)
	select {
	case <-p.TimeoutChannel():
	case <-time.After(time.Second):
		require.Fail(t, "phase did not time out")
	}

	// failed views lengthen the next phase
	p.OnTimeout(model.StatePrepare)
	assert.Equal(t, 40*time.Millisecond, p.StartPhase(ctx).Duration)
	p.OnPhaseComplete(model.StatePrepare)
	p.OnViewDecided()
	assert.Equal(t, 20*time.Millisecond, p.StartPhase(ctx).Duration)
	p.Stop()
}
