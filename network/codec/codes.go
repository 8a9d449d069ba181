package codec

import (
	"fmt"

	"github.com/tari-project/tari-core/model/chain"
	"github.com/tari-project/tari-core/model/hotstuff"
)

const (
	CodeMin uint8 = iota + 1

	// committee consensus
	CodeHotStuffMessage

	// base layer
	CodeBlockHeader
	CodeBlock

	CodeMax
)

// MessageCodeFromInterface returns the correct Code based on the underlying type of message v.
func MessageCodeFromInterface(v interface{}) (uint8, string, error) {
	s := what(v)
	switch v.(type) {
	case *hotstuff.HotStuffMessage:
		return CodeHotStuffMessage, s, nil
	case *chain.BlockHeader:
		return CodeBlockHeader, s, nil
	case *chain.Block:
		return CodeBlock, s, nil
	default:
		return 0, "", fmt.Errorf("invalid encode type (%T)", v)
	}
}

// InterfaceFromMessageCode returns an empty value of the type identified by
// code, to decode into.
func InterfaceFromMessageCode(code uint8) (interface{}, string, error) {
	switch code {
	case CodeHotStuffMessage:
		return &hotstuff.HotStuffMessage{}, what(&hotstuff.HotStuffMessage{}), nil
	case CodeBlockHeader:
		return &chain.BlockHeader{}, what(&chain.BlockHeader{}), nil
	case CodeBlock:
		return &chain.Block{}, what(&chain.Block{}), nil
	default:
		return nil, "", NewUnknownMsgCodeErr(code)
	}
}

func what(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
