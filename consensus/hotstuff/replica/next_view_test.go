package replica

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tari-project/tari-core/consensus/hotstuff/mocks"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

// A replica starting on an empty database stores the genesis node and
// announces view 0 to the leader of view 0.
func TestNextView_Genesis(t *testing.T) {
	c := newTestCommittee(t, 4, time.Second)
	ctx := context.Background()
	genesis := genesisNode()

	for i, r := range c.replicas[:2] {
		event, err := r.worker.starting(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.EventInitialized, event.Kind)

		event, err = r.worker.nextView(ctx)
		require.NoError(t, err)
		require.Equal(t, model.EventNewView, event.Kind)
		require.NotNil(t, event.NewView)
		assert.Equal(t, mhotstuff.ViewID(0), event.NewView.ID)
		assert.Equal(t, i == 0, event.NewView.IsLeader)

		committed, err := r.db.CommittedNode(0)
		require.NoError(t, err)
		assert.Equal(t, genesis.Hash(), committed.Hash())
		locked, err := r.db.GetLockedQC()
		require.NoError(t, err)
		assert.True(t, locked.IsGenesis())
	}

	// both NEW_VIEW messages went to replica-0
	leader := c.replicas[0].conduit
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	senders := make(map[mhotstuff.ReplicaID]struct{})
	for len(senders) < 2 {
		from, message, err := leader.ReceiveMessage(ctx)
		require.NoError(t, err)
		assert.Equal(t, mhotstuff.MessageTypeNewView, message.Type)
		assert.Equal(t, mhotstuff.ViewID(0), message.ViewNumber)
		require.NotNil(t, message.Justify)
		assert.True(t, message.Justify.IsGenesis())
		assert.Equal(t, genesis.Hash(), message.Justify.NodeHash)
		senders[from] = struct{}{}
	}
	assert.Contains(t, senders, c.ids[0])
	assert.Contains(t, senders, c.ids[1])
}

// newViewTo matches a NEW_VIEW message for view.
func newViewTo(view mhotstuff.ViewID) interface{} {
	return mock.MatchedBy(func(message *mhotstuff.HotStuffMessage) bool {
		return message.Type == mhotstuff.MessageTypeNewView && message.ViewNumber == view
	})
}

func TestNextView_FollowsHighestPreparedQC(t *testing.T) {
	outbound := mocks.NewOutboundService(t)
	changer, db := newTestViewChanger(t, outbound)
	ctx := context.Background()

	outbound.On("Send", mock.Anything, changer.self, mhotstuff.ReplicaID("replica-0"), newViewTo(0)).Return(nil).Once()
	event, err := changer.NextView(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, mhotstuff.ViewID(0), event.NewView.ID)

	// a prepared QC from view 7 pulls the replica forward
	require.NoError(t, db.SetPreparedQC(&mhotstuff.QuorumCertificate{
		MessageType: mhotstuff.MessageTypePrepare,
		ViewNumber:  7,
	}))
	// round-robin leader of view 8 in a committee of four
	outbound.On("Send", mock.Anything, changer.self, mhotstuff.ReplicaID("replica-0"), newViewTo(8)).
		Run(func(args mock.Arguments) {
			message := args.Get(3).(*mhotstuff.HotStuffMessage)
			assert.Equal(t, mhotstuff.ViewID(7), message.Justify.ViewNumber)
		}).
		Return(nil).Once()
	from := mhotstuff.ViewID(0)
	event, err = changer.NextView(ctx, &from)
	require.NoError(t, err)
	assert.Equal(t, mhotstuff.ViewID(8), event.NewView.ID)
	assert.False(t, event.NewView.IsLeader)
	outbound.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A failed send is not remembered: the next attempt announces the same view.
func TestNextView_SendError(t *testing.T) {
	outbound := mocks.NewOutboundService(t)
	changer, _ := newTestViewChanger(t, outbound)
	ctx := context.Background()

	outbound.On("Send", mock.Anything, changer.self, mhotstuff.ReplicaID("replica-0"), newViewTo(0)).
		Return(errors.New("peer unreachable")).Once()
	_, err := changer.NextView(ctx, nil)
	assert.True(t, model.IsDigitalAssetError(err), "unexpected error: %v", err)

	outbound.On("Send", mock.Anything, changer.self, mhotstuff.ReplicaID("replica-0"), newViewTo(0)).Return(nil).Once()
	event, err := changer.NextView(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, mhotstuff.ViewID(0), event.NewView.ID)
}

// Restarting on a non-empty database resumes after the highest prepared QC.
func TestNextView_ResumesAfterRestart(t *testing.T) {
	outbound := newRecordingOutbound()
	changer, db := newTestViewChanger(t, outbound)
	ctx := context.Background()

	_, err := changer.NextView(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, db.SetPreparedQC(&mhotstuff.QuorumCertificate{
		MessageType: mhotstuff.MessageTypePrepare,
		ViewNumber:  4,
	}))

	restarted := newViewChanger(changer.log, changer.self, changer.asset, changer.committee, db, changer.provider, outbound, changer.metrics)
	event, err := restarted.NextView(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, mhotstuff.ViewID(5), event.NewView.ID)
	assert.True(t, event.NewView.IsLeader)
}

// Successive NEW_VIEW messages announce strictly increasing views, whatever
// previous views the caller reports.
func TestNextView_Monotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		outbound := newRecordingOutbound()
		changer, db := newTestViewChanger(rt, outbound)
		ctx := context.Background()

		steps := rapid.SliceOfN(rapid.Uint64Range(0, 30), 1, 12).Draw(rt, "from")
		prepared := rapid.SliceOfN(rapid.Uint64Range(0, 30), len(steps), len(steps)).Draw(rt, "prepared")

		event, err := changer.NextView(ctx, nil)
		require.NoError(rt, err)
		require.Equal(rt, mhotstuff.ViewID(0), event.NewView.ID)
		last := event.NewView.ID

		for i, step := range steps {
			require.NoError(rt, db.SetPreparedQC(&mhotstuff.QuorumCertificate{
				MessageType: mhotstuff.MessageTypePrepare,
				ViewNumber:  mhotstuff.ViewID(prepared[i]),
			}))
			from := mhotstuff.ViewID(step)
			event, err := changer.NextView(ctx, &from)
			require.NoError(rt, err)
			view := event.NewView.ID
			if view <= last {
				rt.Fatalf("view %d announced after view %d", view, last)
			}
			if view <= from {
				rt.Fatalf("view %d does not follow the previous view %d", view, from)
			}
			last = view
		}

		sent := outbound.messages()
		require.Len(rt, sent, len(steps)+1)
		for i := 1; i < len(sent); i++ {
			if sent[i].message.ViewNumber <= sent[i-1].message.ViewNumber {
				rt.Fatalf("NEW_VIEW %d sent after %d", sent[i].message.ViewNumber, sent[i-1].message.ViewNumber)
			}
		}
	})
}

// Concurrent calls leaving the same view share one NEW_VIEW message.
func TestNextView_ConcurrentCallsShareSend(t *testing.T) {
	outbound := newRecordingOutbound()
	changer, _ := newTestViewChanger(t, outbound)
	ctx := context.Background()

	_, err := changer.NextView(ctx, nil)
	require.NoError(t, err)
	gate := outbound.hold()

	const callers = 8
	from := mhotstuff.ViewID(0)
	views := make([]mhotstuff.ViewID, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event, err := changer.NextView(ctx, &from)
			errs[i] = err
			if err == nil {
				views[i] = event.NewView.ID
			}
		}(i)
	}

	require.Eventually(t, func() bool { return outbound.sends.Load() == 2 }, time.Second, 10*time.Millisecond)
	// give the remaining callers time to join the running send
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, mhotstuff.ViewID(1), views[i])
	}
	assert.Len(t, outbound.messages(), 2)
}

func TestNextView_SendFailure(t *testing.T) {
	outbound := newRecordingOutbound()
	changer, _ := newTestViewChanger(t, outbound)
	outbound.hold()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := changer.NextView(ctx, nil)
	assert.ErrorIs(t, err, model.ErrShutdown)
}
