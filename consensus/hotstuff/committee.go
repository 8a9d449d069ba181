package hotstuff

import (
	"context"

	"github.com/tari-project/tari-core/model/hotstuff"
)

// CommitteeManager provides the committee governing an asset.
type CommitteeManager interface {
	// CurrentCommittee returns the committee read from the most recent
	// checkpoint.
	CurrentCommittee() (*hotstuff.Committee, error)

	// ReadFromCheckpoint replaces the current committee with the one named by
	// the checkpoint output.
	ReadFromCheckpoint(checkpoint *hotstuff.BaseLayerOutput) error
}

// BaseNodeClient queries the base layer. Both calls suspend on network I/O.
type BaseNodeClient interface {
	GetTipInfo(ctx context.Context) (*hotstuff.BaseLayerMetadata, error)

	// GetCurrentCheckpoint returns the newest checkpoint of the asset at or
	// below the given height, or nil if the asset has none.
	GetCurrentCheckpoint(ctx context.Context, height uint64, asset *hotstuff.AssetDefinition) (*hotstuff.BaseLayerOutput, error)
}
