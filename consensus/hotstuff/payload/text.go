package payload

import (
	"context"
	"fmt"

	"go.uber.org/atomic"

	"github.com/tari-project/tari-core/consensus/hotstuff"
	"github.com/tari-project/tari-core/model/chain"
	mhotstuff "github.com/tari-project/tari-core/model/hotstuff"
)

const textStateRootDomain = "tari.dan.state_root.text"

// TextPayloadProvider proposes numbered text payloads.
type TextPayloadProvider struct {
	genesis string
	prefix  string
	count   *atomic.Uint64
}

var _ hotstuff.PayloadProvider = (*TextPayloadProvider)(nil)

// NewTextPayloadProvider proposes genesis as the genesis payload and
// "<prefix> #<n>" afterwards.
func NewTextPayloadProvider(genesis, prefix string) *TextPayloadProvider {
	return &TextPayloadProvider{
		genesis: genesis,
		prefix:  prefix,
		count:   atomic.NewUint64(0),
	}
}

func (p *TextPayloadProvider) CreateGenesisPayload() mhotstuff.Payload {
	return mhotstuff.NewTextPayload(p.genesis)
}

func (p *TextPayloadProvider) CreatePayload(context.Context) (mhotstuff.Payload, error) {
	return mhotstuff.NewTextPayload(fmt.Sprintf("%s #%d", p.prefix, p.count.Inc())), nil
}

// TextPayloadProcessor derives the state root from the payload hash alone,
// so every replica computes the same root for the same payload.
type TextPayloadProcessor struct{}

var _ hotstuff.PayloadProcessor = TextPayloadProcessor{}

func (TextPayloadProcessor) ProcessPayload(_ context.Context, payload mhotstuff.Payload) (mhotstuff.StateRoot, error) {
	if _, ok := payload.(*mhotstuff.TextPayload); !ok {
		return mhotstuff.StateRoot{}, fmt.Errorf("unsupported payload type %T", payload)
	}
	hash := payload.ConsensusHash()
	return mhotstuff.StateRoot(chain.NewDomainHasher(textStateRootDomain).WriteFixed(hash[:]).Finalize()), nil
}
