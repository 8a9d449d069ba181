package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/tari-project/tari-core/model/chain"
)

const (
	// codes for special database markers
	codeChainMetadata = 1

	// codes for base-layer headers
	codeHeader                = 10
	codeHeaderAccumulatedData = 11
	codeHeightToHeaderHash    = 12
	codeBlockBody             = 13

	// codes for the output and kernel sets
	codeOutput           = 20
	codeCommitmentToHash = 21
	codeSpentOutput      = 22
	codeKernel           = 23

	// codes for the committee chain, every key is prefixed by the asset key
	codeHotStuffNode        = 50
	codeHotStuffPreparedQC  = 51
	codeHotStuffLockedQC    = 52
	codeHotStuffCommitted   = 53
	codeHotStuffLastVotedOn = 54
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, i)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case string:
		return []byte(i)
	case []byte:
		return i
	case chain.Hash:
		return i[:]
	case chain.Commitment:
		return i[:]
	case chain.PublicKey:
		return i[:]
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
