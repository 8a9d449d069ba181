package replica

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/tari-project/tari-core/consensus/hotstuff/mocks"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/module/basenode"
	"github.com/tari-project/tari-core/module/metrics"
	"github.com/tari-project/tari-core/utils/unittest"
)

// run starts the workers of replicas and returns the result of all of them
// once they stopped.
func run(ctx context.Context, replicas []*testReplica) <-chan error {
	var g errgroup.Group
	for _, r := range replicas {
		r := r
		g.Go(func() error {
			return r.worker.Run(ctx)
		})
	}
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()
	return done
}

func requireStopped(t *testing.T, done <-chan error) {
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "workers did not stop")
	}
}

// requireCommitted waits until every replica committed a node at height
// and checks that they all committed the same nodes up to it.
func requireCommitted(t *testing.T, replicas []*testReplica, height uint32, timeout time.Duration) {
	require.Eventually(t, func() bool {
		for _, r := range replicas {
			if _, err := r.db.CommittedNode(height); err != nil {
				return false
			}
		}
		return true
	}, timeout, 20*time.Millisecond, "not every replica committed height %d", height)

	for h := uint32(0); h <= height; h++ {
		expected, err := replicas[0].db.CommittedNode(h)
		require.NoError(t, err)
		assert.Equal(t, h, expected.Height())
		for _, r := range replicas[1:] {
			node, err := r.db.CommittedNode(h)
			require.NoError(t, err)
			assert.Equal(t, expected.Hash(), node.Hash(), "%s committed a different node at height %d", r.id, h)
		}
		if h > 0 {
			parent, err := replicas[0].db.CommittedNode(h - 1)
			require.NoError(t, err)
			assert.True(t, expected.Extends(parent.Hash()), "committed node at height %d does not extend height %d", h, h-1)
		}
	}
}

func drain(events chan model.StateChangedEvent) []model.StateChangedEvent {
	var all []model.StateChangedEvent
	for {
		select {
		case event := <-events:
			all = append(all, event)
		default:
			return all
		}
	}
}

func TestConsensusWorker_CommitsNodes(t *testing.T) {
	c := newTestCommittee(t, 4, 2*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := run(ctx, c.replicas)
	requireCommitted(t, c.replicas, 4, 20*time.Second)
	cancel()
	requireStopped(t, done)

	events := drain(c.replicas[0].events)
	require.NotEmpty(t, events)
	assert.Equal(t, model.StateStarting, events[0].From)
	assert.Equal(t, model.StateNextView, events[0].To)
	assert.Equal(t, model.EventInitialized, events[0].Event.Kind)

	decided := 0
	for _, event := range events {
		if event.Event.Kind == model.EventDecided {
			decided++
			assert.Equal(t, model.StateDecide, event.From)
			assert.Equal(t, model.StateNextView, event.To)
		}
	}
	assert.GreaterOrEqual(t, decided, 4)
}

// A committee of four tolerates one replica that receives and sends
// nothing. The views it leads time out and the others carry on.
func TestConsensusWorker_ToleratesSilentReplica(t *testing.T) {
	c := newTestCommittee(t, 4, 300*time.Millisecond)
	silent := c.ids[3]
	c.hub.SetFilter(func(from, to mhotstuff.ReplicaID, _ *mhotstuff.HotStuffMessage) bool {
		return from != silent && to != silent
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := run(ctx, c.replicas)
	// view 3 is led by the silent replica, height 4 is proposed in view 4
	requireCommitted(t, c.replicas[:3], 4, 30*time.Second)
	cancel()
	requireStopped(t, done)

	_, err := c.replicas[3].db.CommittedNode(1)
	assert.Error(t, err)

	timedOut := false
	for _, event := range drain(c.replicas[0].events) {
		if event.Event.Kind == model.EventTimedOut {
			timedOut = true
		}
	}
	assert.True(t, timedOut)
}

func TestConsensusWorker_Starting(t *testing.T) {
	ctx := context.Background()

	t.Run("no checkpoint", func(t *testing.T) {
		c := newTestCommittee(t, 4, time.Second)
		w := c.replicas[0].worker
		w.services.BaseNode = basenode.NewLocalClient(unittest.Logger(), fixedTip{height: 10})

		event, err := w.starting(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.EventBaseLayerCheckpointNotFound, event.Kind)
		next, err := transition(model.StateStarting, event)
		require.NoError(t, err)
		assert.Equal(t, model.StateIdle, next)
	})

	t.Run("checkpoint above the tip is ignored", func(t *testing.T) {
		c := newTestCommittee(t, 4, time.Second)
		c.baseNode.PublishCheckpoint(c.asset.PublicKey, 11, &mhotstuff.BaseLayerOutput{Committee: c.ids[1:]})

		event, err := c.replicas[0].worker.starting(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.EventInitialized, event.Kind)
	})

	t.Run("not part of the committee", func(t *testing.T) {
		c := newTestCommittee(t, 4, time.Second)
		c.baseNode.PublishCheckpoint(c.asset.PublicKey, 5, &mhotstuff.BaseLayerOutput{Committee: c.ids[1:]})

		event, err := c.replicas[0].worker.starting(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.EventNotPartOfCommittee, event.Kind)

		event, err = c.replicas[1].worker.starting(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.EventInitialized, event.Kind)
		assert.Equal(t, 3, c.replicas[1].worker.session.committee.Len())
	})

	t.Run("shutdown", func(t *testing.T) {
		c := newTestCommittee(t, 4, time.Second)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.replicas[0].worker.starting(cancelled)
		assert.ErrorIs(t, err, model.ErrShutdown)
	})
}

func TestConsensusWorker_StartingCommitteeManager(t *testing.T) {
	ctx := context.Background()
	checkpoint := mock.AnythingOfType("*hotstuff.BaseLayerOutput")

	t.Run("checkpoint rejected", func(t *testing.T) {
		c := newTestCommittee(t, 4, time.Second)
		manager := mocks.NewCommitteeManager(t)
		manager.On("ReadFromCheckpoint", checkpoint).Return(errors.New("malformed committee")).Once()
		w := c.replicas[0].worker
		w.services.CommitteeManager = manager

		_, err := w.starting(ctx)
		assert.True(t, model.IsDigitalAssetError(err), "unexpected error: %v", err)
		manager.AssertNotCalled(t, "CurrentCommittee")
		assert.Nil(t, w.session)
	})

	t.Run("committee without the replica", func(t *testing.T) {
		c := newTestCommittee(t, 4, time.Second)
		others, err := mhotstuff.NewCommittee(c.ids[1:])
		require.NoError(t, err)
		manager := mocks.NewCommitteeManager(t)
		manager.On("ReadFromCheckpoint", checkpoint).Return(nil).Once()
		manager.On("CurrentCommittee").Return(others, nil).Once()
		w := c.replicas[0].worker
		w.services.CommitteeManager = manager

		event, err := w.starting(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.EventNotPartOfCommittee, event.Kind)
	})

	t.Run("committee unavailable", func(t *testing.T) {
		c := newTestCommittee(t, 4, time.Second)
		manager := mocks.NewCommitteeManager(t)
		manager.On("ReadFromCheckpoint", checkpoint).Return(nil).Once()
		manager.On("CurrentCommittee").Return(nil, errors.New("no committee")).Once()
		w := c.replicas[0].worker
		w.services.CommitteeManager = manager

		_, err := w.starting(ctx)
		assert.True(t, model.IsDigitalAssetError(err), "unexpected error: %v", err)
	})
}

func TestConsensusWorker_IdleReturnsToStarting(t *testing.T) {
	c := newTestCommittee(t, 4, 50*time.Millisecond)
	w := c.replicas[0].worker
	w.services.BaseNode = basenode.NewLocalClient(unittest.Logger(), fixedTip{height: 10})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	events := c.replicas[0].events
	seen := make(map[model.WorkerState]int)
	require.Eventually(t, func() bool {
		for _, event := range drain(events) {
			seen[event.To]++
		}
		return seen[model.StateIdle] >= 2 && seen[model.StateStarting] >= 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "worker did not stop")
	}
}

func TestTransition(t *testing.T) {
	view := mhotstuff.View{ID: 3}
	cases := []struct {
		from  model.WorkerState
		event model.Event
		to    model.WorkerState
	}{
		{model.StateStarting, model.NewEvent(model.EventInitialized), model.StateNextView},
		{model.StateStarting, model.NewEvent(model.EventBaseLayerCheckpointNotFound), model.StateIdle},
		{model.StateStarting, model.NewEvent(model.EventNotPartOfCommittee), model.StateIdle},
		{model.StateIdle, model.NewEvent(model.EventTimedOut), model.StateStarting},
		{model.StateNextView, model.NewViewEvent(view), model.StatePrepare},
		{model.StatePrepare, model.NewEvent(model.EventPrepared), model.StatePreCommit},
		{model.StatePrepare, model.NewEvent(model.EventTimedOut), model.StateNextView},
		{model.StatePreCommit, model.NewEvent(model.EventPreCommitted), model.StateCommit},
		{model.StateCommit, model.NewEvent(model.EventCommitted), model.StateDecide},
		{model.StateCommit, model.NewEvent(model.EventTimedOut), model.StateNextView},
		{model.StateDecide, model.NewEvent(model.EventDecided), model.StateNextView},
	}
	for _, tc := range cases {
		next, err := transition(tc.from, tc.event)
		require.NoError(t, err, "%s on %s", tc.from, tc.event)
		assert.Equal(t, tc.to, next, "%s on %s", tc.from, tc.event)
	}

	_, err := transition(model.StatePrepare, model.NewEvent(model.EventDecided))
	assert.Error(t, err)
	_, err = transition(model.StateNextView, model.NewEvent(model.EventNewView))
	assert.Error(t, err)
}

func TestNewConsensusWorker_MissingServices(t *testing.T) {
	c := newTestCommittee(t, 1, time.Second)
	services := c.replicas[0].worker.services
	services.Signer = nil
	_, err := NewConsensusWorker(unittest.Logger(), c.ids[0], c.asset, services, c.replicas[0].worker.pacemaker, metrics.NewNoopCollector(), DefaultConfig())
	assert.True(t, model.IsConfigurationError(err), "unexpected error: %v", err)

	_, err = NewConsensusWorker(unittest.Logger(), c.ids[0], nil, c.replicas[0].worker.services, c.replicas[0].worker.pacemaker, metrics.NewNoopCollector(), DefaultConfig())
	assert.True(t, model.IsConfigurationError(err), "unexpected error: %v", err)
}

func TestNewConsensusWorker_InvalidRetryBackoff(t *testing.T) {
	c := newTestCommittee(t, 1, time.Second)
	config := DefaultConfig()
	config.RetryBackoff = 0
	_, err := NewConsensusWorker(unittest.Logger(), c.ids[0], c.asset, c.replicas[0].worker.services, c.replicas[0].worker.pacemaker, metrics.NewNoopCollector(), config)
	assert.True(t, model.IsConfigurationError(err), "unexpected error: %v", err)
}
