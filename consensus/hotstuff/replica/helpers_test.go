package replica

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/committee"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	"github.com/tari-project/tari-core/consensus/hotstuff/notifications"
	"github.com/tari-project/tari-core/consensus/hotstuff/notifications/pubsub"
	"github.com/tari-project/tari-core/consensus/hotstuff/pacemaker"
	"github.com/tari-project/tari-core/consensus/hotstuff/pacemaker/timeout"
	"github.com/tari-project/tari-core/consensus/hotstuff/payload"
	"github.com/tari-project/tari-core/consensus/hotstuff/persister"
	"github.com/tari-project/tari-core/consensus/hotstuff/signature"
	"github.com/tari-project/tari-core/model/chain"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/module/basenode"
	"github.com/tari-project/tari-core/module/metrics"
	"github.com/tari-project/tari-core/network/codec/cbor"
	"github.com/tari-project/tari-core/network/stub"
	"github.com/tari-project/tari-core/storage"
	"github.com/tari-project/tari-core/utils/unittest"
)

const genesisText = "genesis"

// fixedTip reports a base layer chain that never grows.
type fixedTip struct {
	height uint64
}

func (f fixedTip) ChainMetadata() (*chain.ChainMetadata, error) {
	return &chain.ChainMetadata{HeightOfLongestChain: f.height}, nil
}

type testReplica struct {
	id      mhotstuff.ReplicaID
	worker  *ConsensusWorker
	db      hotstuff.ChainDb
	conduit *stub.Conduit
	events  chan model.StateChangedEvent
}

// testCommittee wires n replicas of one asset to an in-process hub. Each
// replica has its own badger database.
type testCommittee struct {
	ids      []mhotstuff.ReplicaID
	keys     map[mhotstuff.ReplicaID]chain.PrivateKey
	asset    *mhotstuff.AssetDefinition
	hub      *stub.Hub
	baseNode *basenode.LocalClient
	replicas []*testReplica
}

func newTestCommittee(t *testing.T, n int, phaseTimeout time.Duration) *testCommittee {
	ids := unittest.ReplicaIDs(n)
	keys := unittest.ReplicaKeys(ids)
	ring, err := signature.NewKeyRing(keys)
	require.NoError(t, err)
	asset := unittest.AssetFixture(t, ids)

	codec, err := cbor.NewCodec(mhotstuff.TextPayloadCodec{})
	require.NoError(t, err)
	hub, err := stub.NewHub(unittest.Logger(), codec, metrics.NewNoopCollector())
	require.NoError(t, err)

	baseNode := basenode.NewLocalClient(unittest.Logger(), fixedTip{height: 10})
	baseNode.PublishCheckpoint(asset.PublicKey, 2, &mhotstuff.BaseLayerOutput{Committee: ids})

	c := &testCommittee{
		ids:      ids,
		keys:     keys,
		asset:    asset,
		hub:      hub,
		baseNode: baseNode,
	}
	for _, id := range ids {
		conduit, err := hub.Register(id)
		require.NoError(t, err)
		manager, err := committee.NewStaticCommitteeManager(asset)
		require.NoError(t, err)
		factory := persister.NewFactory(unittest.InMemoryBadgerDB(t), mhotstuff.TextPayloadCodec{})

		config, err := timeout.NewConfig(phaseTimeout, 4*phaseTimeout, 1.5, 3)
		require.NoError(t, err)
		pm := pacemaker.New(timeout.NewController(config), metrics.NewNoopCollector())

		events := make(chan model.StateChangedEvent, 4096)
		distributor := pubsub.NewDistributor()
		distributor.AddConsumer(notifications.NewLogConsumer(unittest.Logger()))
		distributor.AddOnStateChangedConsumer(func(event model.StateChangedEvent) {
			select {
			case events <- event:
			default:
			}
		})

		worker, err := NewConsensusWorker(unittest.Logger(), id, asset, Services{
			CommitteeManager: manager,
			BaseNode:         baseNode,
			DbFactory:        factory,
			PayloadProvider:  payload.NewTextPayloadProvider(genesisText, string(id)),
			PayloadProcessor: payload.TextPayloadProcessor{},
			Outbound:         conduit,
			Inbound:          conduit,
			Signer:           signature.NewSchnorrSigningService(id, keys[id], ring),
			Notifier:         distributor,
		}, pm, metrics.NewNoopCollector(), DefaultConfig())
		require.NoError(t, err)

		db, err := factory.GetOrCreateChainDb(asset.PublicKey)
		require.NoError(t, err)
		c.replicas = append(c.replicas, &testReplica{
			id:      id,
			worker:  worker,
			db:      db,
			conduit: conduit,
			events:  events,
		})
	}
	return c
}

// initialize runs the Starting and NextView states of replica i, leaving it
// in view 0 on top of the genesis node.
func (c *testCommittee) initialize(t *testing.T, i int) *testReplica {
	r := c.replicas[i]
	ctx := context.Background()
	event, err := r.worker.starting(ctx)
	require.NoError(t, err)
	require.Equal(t, model.EventInitialized, event.Kind)
	event, err = r.worker.nextView(ctx)
	require.NoError(t, err)
	require.Equal(t, model.EventNewView, event.Kind)
	require.NoError(t, r.worker.enterView(*event.NewView))
	return r
}

// qc returns a certificate for node signed by the first signers replicas.
func (c *testCommittee) qc(t require.TestingT, messageType mhotstuff.HotStuffMessageType, view mhotstuff.ViewID, node mhotstuff.TreeNodeHash, signers int) *mhotstuff.QuorumCertificate {
	return unittest.QuorumCertificateFixture(t, c.keys, messageType, view, node, c.ids[:signers]...)
}

func genesisNode() *mhotstuff.HotStuffTreeNode {
	return mhotstuff.Genesis(mhotstuff.NewTextPayload(genesisText), mhotstuff.InitialStateRoot())
}

// childNode returns a node extending parent whose state root matches the
// text payload processor.
func childNode(t *testing.T, parent *mhotstuff.HotStuffTreeNode, text string, justify *mhotstuff.QuorumCertificate) *mhotstuff.HotStuffTreeNode {
	p := mhotstuff.NewTextPayload(text)
	root, err := payload.TextPayloadProcessor{}.ProcessPayload(context.Background(), p)
	require.NoError(t, err)
	return mhotstuff.FromParent(parent.Hash(), p, root, parent.Height()+1, justify)
}

// memoryChainDb is a map backed chain database.
type memoryChainDb struct {
	mu        sync.Mutex
	nodes     map[mhotstuff.TreeNodeHash]*mhotstuff.HotStuffTreeNode
	committed map[uint32]*mhotstuff.HotStuffTreeNode
	prepared  *mhotstuff.QuorumCertificate
	locked    *mhotstuff.QuorumCertificate
	voted     *mhotstuff.ViewID
}

var _ hotstuff.ChainDb = (*memoryChainDb)(nil)

func newMemoryChainDb() *memoryChainDb {
	return &memoryChainDb{
		nodes:     make(map[mhotstuff.TreeNodeHash]*mhotstuff.HotStuffTreeNode),
		committed: make(map[uint32]*mhotstuff.HotStuffTreeNode),
	}
}

func (m *memoryChainDb) IsEmpty() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes) == 0, nil
}

func (m *memoryChainDb) FindHighestPreparedQC() (*mhotstuff.QuorumCertificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prepared == nil {
		return nil, storage.ErrNotFound
	}
	return m.prepared, nil
}

func (m *memoryChainDb) GetLockedQC() (*mhotstuff.QuorumCertificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked == nil {
		return nil, storage.ErrNotFound
	}
	return m.locked, nil
}

func (m *memoryChainDb) SetLockedQC(qc *mhotstuff.QuorumCertificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = qc
	return nil
}

func (m *memoryChainDb) SetPreparedQC(qc *mhotstuff.QuorumCertificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prepared == nil || qc.ViewNumber >= m.prepared.ViewNumber {
		m.prepared = qc
	}
	return nil
}

func (m *memoryChainDb) AddNode(node *mhotstuff.HotStuffTreeNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[node.Hash()] = node
	return nil
}

func (m *memoryChainDb) Node(hash mhotstuff.TreeNodeHash) (*mhotstuff.HotStuffTreeNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.nodes[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return node, nil
}

func (m *memoryChainDb) CommitNode(node *mhotstuff.HotStuffTreeNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed[node.Height()] = node
	return nil
}

func (m *memoryChainDb) CommittedNode(height uint32) (*mhotstuff.HotStuffTreeNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.committed[height]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return node, nil
}

func (m *memoryChainDb) LastVotedView() (mhotstuff.ViewID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voted == nil {
		return 0, false, nil
	}
	return *m.voted, true, nil
}

func (m *memoryChainDb) SetLastVotedView(view mhotstuff.ViewID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voted = &view
	return nil
}

type sentMessage struct {
	from    mhotstuff.ReplicaID
	to      mhotstuff.ReplicaID
	message *mhotstuff.HotStuffMessage
}

// recordingOutbound records every message sent. While a gate is set, Send
// blocks until the gate is closed.
type recordingOutbound struct {
	mu    sync.Mutex
	sent  []sentMessage
	gate  chan struct{}
	sends *atomic.Int32
}

var _ hotstuff.OutboundService = (*recordingOutbound)(nil)

func newRecordingOutbound() *recordingOutbound {
	return &recordingOutbound{sends: atomic.NewInt32(0)}
}

func (o *recordingOutbound) hold() chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gate = make(chan struct{})
	return o.gate
}

func (o *recordingOutbound) Send(ctx context.Context, from, to mhotstuff.ReplicaID, message *mhotstuff.HotStuffMessage) error {
	o.sends.Inc()
	o.mu.Lock()
	gate := o.gate
	o.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, sentMessage{from: from, to: to, message: message})
	return nil
}

func (o *recordingOutbound) Broadcast(ctx context.Context, from mhotstuff.ReplicaID, members []mhotstuff.ReplicaID, message *mhotstuff.HotStuffMessage) error {
	for _, member := range members {
		err := o.Send(ctx, from, member, message)
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *recordingOutbound) messages() []sentMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]sentMessage(nil), o.sent...)
}

// newTestViewChanger returns a view changer of replica-1 in a committee of
// four over a fresh in-memory chain database.
func newTestViewChanger(t require.TestingT, outbound hotstuff.OutboundService) (*viewChanger, *memoryChainDb) {
	ids := unittest.ReplicaIDs(4)
	members, err := mhotstuff.NewCommittee(ids)
	require.NoError(t, err)
	asset := &mhotstuff.AssetDefinition{Committee: ids, InitialState: genesisText}
	db := newMemoryChainDb()
	changer := newViewChanger(
		unittest.Logger(),
		ids[1],
		asset,
		members,
		db,
		payload.NewTextPayloadProvider(genesisText, "test"),
		outbound,
		metrics.NewNoopCollector(),
	)
	return changer, db
}
