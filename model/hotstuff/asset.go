package hotstuff

import (
	"github.com/tari-project/tari-core/model/chain"
)

// AssetDefinition describes an asset governed by a committee.
type AssetDefinition struct {
	PublicKey          chain.PublicKey
	CheckpointUniqueID []byte
	InitialState       string
	// Committee is the initial committee, used until a checkpoint names one.
	Committee []ReplicaID
	// PhaseTimeoutMS overrides the default phase timeout when non-zero.
	PhaseTimeoutMS uint64
}

// BaseLayerMetadata is the tip of the base layer as seen by a replica.
type BaseLayerMetadata struct {
	HeightOfLongestChain uint64
	TipHash              chain.Hash
}

// BaseLayerOutput is an asset checkpoint published on the base layer.
type BaseLayerOutput struct {
	Features  chain.OutputFeatures
	Committee []ReplicaID
	// MerkleRoot is the state root the checkpoint commits to.
	MerkleRoot StateRoot
}
