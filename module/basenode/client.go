package basenode

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/model/chain"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

// ChainMetadataSource provides the tip of a local base layer chain.
type ChainMetadataSource interface {
	ChainMetadata() (*chain.ChainMetadata, error)
}

type checkpoint struct {
	height uint64
	output *mhotstuff.BaseLayerOutput
}

// LocalClient answers base layer queries of the committee replicas from a
// chain held by this process. Asset checkpoints are registered with
// PublishCheckpoint.
type LocalClient struct {
	log   zerolog.Logger
	chain ChainMetadataSource

	mu          sync.RWMutex
	checkpoints map[chain.PublicKey][]checkpoint
}

var _ hotstuff.BaseNodeClient = (*LocalClient)(nil)

func NewLocalClient(log zerolog.Logger, source ChainMetadataSource) *LocalClient {
	return &LocalClient{
		log:         log.With().Str("component", "base_node_client").Logger(),
		chain:       source,
		checkpoints: make(map[chain.PublicKey][]checkpoint),
	}
}

// PublishCheckpoint records a checkpoint of asset mined at height.
func (c *LocalClient) PublishCheckpoint(asset chain.PublicKey, height uint64, output *mhotstuff.BaseLayerOutput) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := append(c.checkpoints[asset], checkpoint{height: height, output: output})
	sort.SliceStable(list, func(i, j int) bool { return list[i].height < list[j].height })
	c.checkpoints[asset] = list
	c.log.Debug().
		Str("asset", asset.String()).
		Uint64("height", height).
		Int("committee_size", len(output.Committee)).
		Msg("checkpoint published")
}

func (c *LocalClient) GetTipInfo(ctx context.Context) (*mhotstuff.BaseLayerMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metadata, err := c.chain.ChainMetadata()
	if err != nil {
		return nil, fmt.Errorf("could not read chain metadata: %w", err)
	}
	return &mhotstuff.BaseLayerMetadata{
		HeightOfLongestChain: metadata.HeightOfLongestChain,
		TipHash:              metadata.BestBlock,
	}, nil
}

// GetCurrentCheckpoint returns the newest checkpoint of asset at or below
// height, or nil if there is none.
func (c *LocalClient) GetCurrentCheckpoint(ctx context.Context, height uint64, asset *mhotstuff.AssetDefinition) (*mhotstuff.BaseLayerOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := c.checkpoints[asset.PublicKey]
	i := sort.Search(len(list), func(i int) bool { return list[i].height > height })
	if i == 0 {
		return nil, nil
	}
	return list[i-1].output, nil
}
