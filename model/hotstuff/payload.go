package hotstuff

import (
	"fmt"

	"github.com/tari-project/tari-core/model/chain"
)

const textPayloadDomain = "tari.dan.payload.text"

// Payload is the application data carried by a tree node.
type Payload interface {
	// ConsensusHash is the hash committed to by the tree node.
	ConsensusHash() chain.Hash
	Clone() Payload
}

// TextPayload is a payload of opaque text, used by local networks and tests.
type TextPayload struct {
	Text string
}

var _ Payload = (*TextPayload)(nil)

func NewTextPayload(text string) *TextPayload {
	return &TextPayload{Text: text}
}

func (p *TextPayload) ConsensusHash() chain.Hash {
	return chain.NewDomainHasher(textPayloadDomain).WriteBytes([]byte(p.Text)).Finalize()
}

func (p *TextPayload) Clone() Payload {
	return &TextPayload{Text: p.Text}
}

func (p *TextPayload) String() string {
	return p.Text
}

// PayloadCodec converts payloads to and from their stored and wire form.
type PayloadCodec interface {
	EncodePayload(Payload) ([]byte, error)
	DecodePayload([]byte) (Payload, error)
}

// TextPayloadCodec encodes TextPayloads as their raw text.
type TextPayloadCodec struct{}

var _ PayloadCodec = TextPayloadCodec{}

func (TextPayloadCodec) EncodePayload(p Payload) ([]byte, error) {
	text, ok := p.(*TextPayload)
	if !ok {
		return nil, fmt.Errorf("unsupported payload type %T", p)
	}
	return []byte(text.Text), nil
}

func (TextPayloadCodec) DecodePayload(data []byte) (Payload, error) {
	return NewTextPayload(string(data)), nil
}
