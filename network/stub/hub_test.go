package stub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/module/metrics"
	"github.com/tari-project/tari-core/network/codec/cbor"
	"github.com/tari-project/tari-core/utils/unittest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// started on import by storage dependencies of the test fixtures
		goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func newHub(t *testing.T, opts ...HubOption) *Hub {
	codec, err := cbor.NewCodec(hotstuff.TextPayloadCodec{})
	require.NoError(t, err)
	hub, err := NewHub(unittest.Logger(), codec, metrics.NewNoopCollector(), opts...)
	require.NoError(t, err)
	return hub
}

func register(t *testing.T, hub *Hub, ids []hotstuff.ReplicaID) []*Conduit {
	conduits := make([]*Conduit, 0, len(ids))
	for _, id := range ids {
		conduit, err := hub.Register(id)
		require.NoError(t, err)
		conduits = append(conduits, conduit)
	}
	return conduits
}

func newViewMessage(t *testing.T, view hotstuff.ViewID) *hotstuff.HotStuffMessage {
	genesis := hotstuff.Genesis(hotstuff.NewTextPayload("genesis"), hotstuff.InitialStateRoot())
	return hotstuff.NewViewMessage(genesis.Justify(), view, unittest.AssetKeyFixture(t, "stub"))
}

func receive(t *testing.T, conduit *Conduit) (hotstuff.ReplicaID, *hotstuff.HotStuffMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	from, message, err := conduit.ReceiveMessage(ctx)
	require.NoError(t, err)
	return from, message
}

func TestHub_Send(t *testing.T) {
	hub := newHub(t)
	ids := unittest.ReplicaIDs(2)
	conduits := register(t, hub, ids)

	sent := newViewMessage(t, 3)
	require.NoError(t, conduits[0].Send(context.Background(), ids[0], ids[1], sent))
	from, message := receive(t, conduits[1])
	assert.Equal(t, ids[0], from)
	assert.Equal(t, sent.ViewNumber, message.ViewNumber)
	assert.NotSame(t, sent, message, "messages cross the wire codec")

	// loopback
	require.NoError(t, conduits[0].Send(context.Background(), ids[0], ids[0], sent))
	from, _ = receive(t, conduits[0])
	assert.Equal(t, ids[0], from)

	assert.Error(t, conduits[0].Send(context.Background(), ids[1], ids[0], sent), "cannot send on behalf of another replica")
	_, err := hub.Register(ids[0])
	assert.Error(t, err)
	assert.Equal(t, uint64(2), hub.Delivered())
}

func TestHub_Broadcast(t *testing.T) {
	hub := newHub(t)
	ids := unittest.ReplicaIDs(3)
	conduits := register(t, hub, ids)

	members := append(append([]hotstuff.ReplicaID(nil), ids...), "stranger")
	err := conduits[0].Broadcast(context.Background(), ids[0], members, newViewMessage(t, 1))
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 1)
	assert.ErrorIs(t, err, ErrUnknownPeer)

	for _, conduit := range conduits {
		from, message := receive(t, conduit)
		assert.Equal(t, ids[0], from)
		assert.Equal(t, hotstuff.ViewID(1), message.ViewNumber)
	}
}

func TestHub_Filter(t *testing.T) {
	hub := newHub(t)
	ids := unittest.ReplicaIDs(2)
	conduits := register(t, hub, ids)
	hub.SetFilter(func(from, to hotstuff.ReplicaID, message *hotstuff.HotStuffMessage) bool {
		return message.ViewNumber != 1
	})

	require.NoError(t, conduits[0].Send(context.Background(), ids[0], ids[1], newViewMessage(t, 1)))
	require.NoError(t, conduits[0].Send(context.Background(), ids[0], ids[1], newViewMessage(t, 2)))
	_, message := receive(t, conduits[1])
	assert.Equal(t, hotstuff.ViewID(2), message.ViewNumber)
	assert.Equal(t, uint64(1), hub.Dropped())
}

func TestHub_Deduplication(t *testing.T) {
	hub := newHub(t, WithDeduplication(16))
	ids := unittest.ReplicaIDs(2)
	conduits := register(t, hub, ids)

	message := newViewMessage(t, 1)
	require.NoError(t, conduits[0].Send(context.Background(), ids[0], ids[1], message))
	require.NoError(t, conduits[0].Send(context.Background(), ids[0], ids[1], message))
	require.NoError(t, conduits[0].Send(context.Background(), ids[0], ids[0], message))
	assert.Equal(t, uint64(2), hub.Delivered())
	assert.Equal(t, uint64(1), hub.Dropped())
}

func TestHub_InboxFull(t *testing.T) {
	hub := newHub(t, WithInboxCapacity(1))
	ids := unittest.ReplicaIDs(2)
	conduits := register(t, hub, ids)

	require.NoError(t, conduits[0].Send(context.Background(), ids[0], ids[1], newViewMessage(t, 1)))
	err := conduits[0].Send(context.Background(), ids[0], ids[1], newViewMessage(t, 2))
	assert.ErrorIs(t, err, ErrInboxFull)
}

func TestConduit_ReceiveCancelled(t *testing.T) {
	hub := newHub(t)
	conduits := register(t, hub, unittest.ReplicaIDs(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, err := conduits[0].ReceiveMessage(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	}()
	cancel()
	unittest.RequireCloseBefore(t, done, time.Second, "receive did not return after cancel")
}
