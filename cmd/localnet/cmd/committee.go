package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tari-project/tari-core/config"
	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/consensus/hotstuff/committee"
	"github.com/tari-project/tari-core/consensus/hotstuff/model"
	"github.com/tari-project/tari-core/consensus/hotstuff/notifications"
	"github.com/tari-project/tari-core/consensus/hotstuff/notifications/pubsub"
	"github.com/tari-project/tari-core/consensus/hotstuff/pacemaker"
	"github.com/tari-project/tari-core/consensus/hotstuff/pacemaker/timeout"
	"github.com/tari-project/tari-core/consensus/hotstuff/payload"
	"github.com/tari-project/tari-core/consensus/hotstuff/persister"
	"github.com/tari-project/tari-core/consensus/hotstuff/replica"
	"github.com/tari-project/tari-core/consensus/hotstuff/signature"
	"github.com/tari-project/tari-core/crypto"
	"github.com/tari-project/tari-core/model/chain"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/module/basenode"
	"github.com/tari-project/tari-core/module/metrics"
	"github.com/tari-project/tari-core/network/codec/cbor"
	"github.com/tari-project/tari-core/network/stub"
)

// checkpointHeight is the base layer height the committee checkpoint of
// the local asset is published at.
const checkpointHeight = 1

// staticTip is a base layer that never grows.
type staticTip struct {
	height uint64
}

func (s staticTip) ChainMetadata() (*chain.ChainMetadata, error) {
	return &chain.ChainMetadata{HeightOfLongestChain: s.height}, nil
}

type member struct {
	id     mhotstuff.ReplicaID
	worker *replica.ConsensusWorker
	chain  hotstuff.ChainDb
	db     *badger.DB
}

// localCommittee is a committee of replicas connected by an in-process hub.
type localCommittee struct {
	asset   *mhotstuff.AssetDefinition
	hub     *stub.Hub
	members []*member
}

type committeeParams struct {
	size     int
	asset    string
	registry prometheus.Registerer
	decided  func(id mhotstuff.ReplicaID, view mhotstuff.ViewID)
}

// newLocalCommittee builds size replicas for one asset. Keys are derived
// from the replica addresses, so runs are reproducible.
func newLocalCommittee(log zerolog.Logger, conf *config.NodeConfig, params committeeParams) (*localCommittee, error) {
	if params.size < 1 {
		return nil, fmt.Errorf("committee size must be positive, got %d", params.size)
	}

	ids := make([]mhotstuff.ReplicaID, 0, params.size)
	keys := make(map[mhotstuff.ReplicaID]chain.PrivateKey, params.size)
	for i := 0; i < params.size; i++ {
		id := mhotstuff.ReplicaID(fmt.Sprintf("replica-%d", i))
		ids = append(ids, id)
		keys[id] = crypto.PrivateKeyFromSeed([]byte(id))
	}
	ring, err := signature.NewKeyRing(keys)
	if err != nil {
		return nil, fmt.Errorf("could not build key ring: %w", err)
	}

	assetKey, err := crypto.PublicKeyFromPrivateKey(crypto.PrivateKeyFromSeed([]byte("asset:" + params.asset)))
	if err != nil {
		return nil, fmt.Errorf("could not derive asset key: %w", err)
	}
	asset := &mhotstuff.AssetDefinition{
		PublicKey:          assetKey,
		CheckpointUniqueID: []byte(params.asset),
		InitialState:       params.asset,
		Committee:          ids,
	}

	codec, err := cbor.NewCodec(mhotstuff.TextPayloadCodec{})
	if err != nil {
		return nil, err
	}
	hub, err := stub.NewHub(log, codec, metrics.NewNetworkCollector(params.registry), stub.WithDeduplication(stub.DefaultInboxCapacity))
	if err != nil {
		return nil, fmt.Errorf("could not create committee network: %w", err)
	}

	baseNode := basenode.NewLocalClient(log, staticTip{height: checkpointHeight})
	baseNode.PublishCheckpoint(asset.PublicKey, checkpointHeight, &mhotstuff.BaseLayerOutput{Committee: ids})

	timeouts, err := conf.HotStuff.TimeoutConfig()
	if err != nil {
		return nil, err
	}

	c := &localCommittee{asset: asset, hub: hub}
	for _, id := range ids {
		m, err := c.newMember(log, conf, params, id, keys[id], ring, baseNode, timeouts)
		if err != nil {
			_ = c.close()
			return nil, fmt.Errorf("could not create %s: %w", id, err)
		}
		c.members = append(c.members, m)
	}
	return c, nil
}

func (c *localCommittee) newMember(
	log zerolog.Logger,
	conf *config.NodeConfig,
	params committeeParams,
	id mhotstuff.ReplicaID,
	key chain.PrivateKey,
	ring signature.KeyRing,
	baseNode hotstuff.BaseNodeClient,
	timeouts timeout.Config,
) (*member, error) {
	db, err := openDatabase(conf.Storage, string(id))
	if err != nil {
		return nil, err
	}
	conduit, err := c.hub.Register(id)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	manager, err := committee.NewStaticCommitteeManager(c.asset)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registerer := prometheus.WrapRegistererWith(prometheus.Labels{"replica": string(id)}, params.registry)
	collector := metrics.NewHotStuffCollector(registerer)

	replicaLog := log.With().Str("replica", string(id)).Logger()
	distributor := pubsub.NewDistributor()
	distributor.AddConsumer(notifications.NewLogConsumer(replicaLog))
	if params.decided != nil {
		distributor.AddOnStateChangedConsumer(func(event model.StateChangedEvent) {
			if event.Event.Kind == model.EventDecided {
				params.decided(id, event.View)
			}
		})
	}

	factory := persister.NewFactory(db, mhotstuff.TextPayloadCodec{})
	worker, err := replica.NewConsensusWorker(replicaLog, id, c.asset, replica.Services{
		CommitteeManager: manager,
		BaseNode:         baseNode,
		DbFactory:        factory,
		PayloadProvider:  payload.NewTextPayloadProvider(c.asset.InitialState, string(id)),
		PayloadProcessor: payload.TextPayloadProcessor{},
		Outbound:         conduit,
		Inbound:          conduit,
		Signer:           signature.NewSchnorrSigningService(id, key, ring),
		Notifier:         distributor,
	}, pacemaker.New(timeout.NewController(timeouts), collector), collector, conf.HotStuff.WorkerConfig())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	chainDb, err := factory.GetOrCreateChainDb(c.asset.PublicKey)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &member{id: id, worker: worker, chain: chainDb, db: db}, nil
}

// committedHeight returns the highest height every member committed, or
// false if some member has not committed the genesis node yet.
func (c *localCommittee) committedHeight() (uint32, bool) {
	var lowest uint32
	for i, m := range c.members {
		var height uint32
		if _, err := m.chain.CommittedNode(0); err != nil {
			return 0, false
		}
		for {
			if _, err := m.chain.CommittedNode(height + 1); err != nil {
				break
			}
			height++
		}
		if i == 0 || height < lowest {
			lowest = height
		}
	}
	return lowest, true
}

func (c *localCommittee) close() error {
	var result *multierror.Error
	for _, m := range c.members {
		err := m.db.Close()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not close database of %s: %w", m.id, err))
		}
	}
	return result.ErrorOrNil()
}

func openDatabase(conf config.StorageConfig, name string) (*badger.DB, error) {
	opts := badger.DefaultOptions(filepath.Join(conf.Dir, name)).WithLogger(nil)
	if conf.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithMaxTableSize(8 << 20).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open database %s: %w", name, err)
	}
	return db, nil
}
