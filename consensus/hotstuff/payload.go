package hotstuff

import (
	"context"

	"github.com/tari-project/tari-core/model/hotstuff"
)

// PayloadProvider creates the payloads proposed by the leader.
type PayloadProvider interface {
	CreateGenesisPayload() hotstuff.Payload
	CreatePayload(ctx context.Context) (hotstuff.Payload, error)
}

// PayloadProcessor executes a payload against the asset state and returns
// the resulting state root. Replicas compare it with the proposed node's.
type PayloadProcessor interface {
	ProcessPayload(ctx context.Context, payload hotstuff.Payload) (hotstuff.StateRoot, error)
}
