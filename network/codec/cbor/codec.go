package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/model/hotstuff"
	"github.com/tari-project/tari-core/network/codec"
)

// Codec encodes network messages as a one byte message code followed by
// the CBOR encoding of the message. Tree node payloads are encoded with
// the payload codec of the asset.
type Codec struct {
	payloads hotstuff.PayloadCodec
	encMode  cbor.EncMode
	decMode  cbor.DecMode
}

// NewCodec creates a new CBOR codec.
func NewCodec(payloads hotstuff.PayloadCodec) (*Codec, error) {
	// deterministic encoding so that equal messages encode to equal bytes
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("could not create cbor encoding mode: %w", err)
	}
	decMode, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("could not create cbor decoding mode: %w", err)
	}
	return &Codec{
		payloads: payloads,
		encMode:  encMode,
		decMode:  decMode,
	}, nil
}

// Encode encodes v, which must be one of the types known to
// codec.MessageCodeFromInterface.
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	code, what, err := codec.MessageCodeFromInterface(v)
	if err != nil {
		return nil, fmt.Errorf("could not determine envelope code: %w", err)
	}

	var value interface{} = v
	if message, ok := v.(*hotstuff.HotStuffMessage); ok {
		value, err = c.toWire(message)
		if err != nil {
			return nil, fmt.Errorf("could not convert %s: %w", what, err)
		}
	}

	data, err := c.encMode.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("could not encode cbor payload of type %s: %w", what, err)
	}
	return append([]byte{code}, data...), nil
}

// Decode decodes a message produced by Encode.
// Returns:
//   - codec.ErrInvalidEncoding for empty input
//   - codec.ErrUnknownMsgCode for an unknown message code
//   - codec.ErrMsgUnmarshal if the payload does not decode
func (c *Codec) Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, codec.ErrInvalidEncoding
	}
	code := data[0]
	v, what, err := codec.InterfaceFromMessageCode(code)
	if err != nil {
		return nil, err
	}

	if _, ok := v.(*hotstuff.HotStuffMessage); ok {
		var wire wireMessage
		err = c.decMode.Unmarshal(data[1:], &wire)
		if err != nil {
			return nil, codec.NewMsgUnmarshalErr(code, what, err)
		}
		message, err := c.fromWire(&wire)
		if err != nil {
			return nil, codec.NewMsgUnmarshalErr(code, what, err)
		}
		return message, nil
	}

	err = c.decMode.Unmarshal(data[1:], v)
	if err != nil {
		return nil, codec.NewMsgUnmarshalErr(code, what, err)
	}
	return v, nil
}

// wireMessage is the encoded form of a HotStuffMessage.
type wireMessage struct {
	Type       hotstuff.HotStuffMessageType
	ViewNumber hotstuff.ViewID
	Node       *wireNode `cbor:",omitempty"`
	NodeHash   hotstuff.TreeNodeHash
	Justify    *hotstuff.QuorumCertificate  `cbor:",omitempty"`
	PartialSig *hotstuff.ValidatorSignature `cbor:",omitempty"`
	AssetID    chain.PublicKey
}

// wireNode carries the announced hash of a node. Receivers rebuild the
// node with hotstuff.NewTreeNode and must check IsConsistent.
type wireNode struct {
	Parent    hotstuff.TreeNodeHash
	Payload   []byte
	StateRoot hotstuff.StateRoot
	Height    uint32
	Justify   *hotstuff.QuorumCertificate `cbor:",omitempty"`
	Hash      hotstuff.TreeNodeHash
}

func (c *Codec) toWire(m *hotstuff.HotStuffMessage) (*wireMessage, error) {
	wire := &wireMessage{
		Type:       m.Type,
		ViewNumber: m.ViewNumber,
		NodeHash:   m.NodeHash,
		Justify:    m.Justify,
		PartialSig: m.PartialSig,
		AssetID:    m.AssetID,
	}
	if m.Node != nil {
		node := m.Node.Untrusted()
		payload, err := c.payloads.EncodePayload(node.Payload)
		if err != nil {
			return nil, fmt.Errorf("could not encode payload of node %s: %w", node.Hash, err)
		}
		wire.Node = &wireNode{
			Parent:    node.Parent,
			Payload:   payload,
			StateRoot: node.StateRoot,
			Height:    node.Height,
			Justify:   node.Justify,
			Hash:      node.Hash,
		}
	}
	return wire, nil
}

func (c *Codec) fromWire(wire *wireMessage) (*hotstuff.HotStuffMessage, error) {
	message := &hotstuff.HotStuffMessage{
		Type:       wire.Type,
		ViewNumber: wire.ViewNumber,
		NodeHash:   wire.NodeHash,
		Justify:    wire.Justify,
		PartialSig: wire.PartialSig,
		AssetID:    wire.AssetID,
	}
	if wire.Node != nil {
		payload, err := c.payloads.DecodePayload(wire.Node.Payload)
		if err != nil {
			return nil, fmt.Errorf("could not decode payload of node %s: %w", wire.Node.Hash, err)
		}
		message.Node = hotstuff.NewTreeNode(hotstuff.UntrustedTreeNode{
			Parent:    wire.Node.Parent,
			Payload:   payload,
			StateRoot: wire.Node.StateRoot,
			Height:    wire.Node.Height,
			Justify:   wire.Node.Justify,
			Hash:      wire.Node.Hash,
		})
	}
	return message, nil
}
