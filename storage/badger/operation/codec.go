package operation

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/tari-project/tari-core/module/irrecoverable"
)

var errUncompressedValue = errors.New("could not uncompress data")

// encodeEntity serialises the entity with msgpack and compresses it.
// The only error returned is an irrecoverable exception.
func encodeEntity(entity interface{}) ([]byte, error) {
	val, err := msgpack.Marshal(entity)
	if err != nil {
		return nil, irrecoverable.NewExceptionf("could not encode entity: %w", err)
	}
	return snappy.Encode(nil, val), nil
}

// decodeValue reverses encodeEntity. A value that fails to decode means the
// database is corrupted, so the error is an irrecoverable exception.
func decodeValue(val []byte, entity interface{}) error {
	raw, err := snappy.Decode(nil, val)
	if err != nil {
		return irrecoverable.NewExceptionf("%s: %w", err, errUncompressedValue)
	}
	err = msgpack.Unmarshal(raw, entity)
	if err != nil {
		return irrecoverable.NewExceptionf("could not decode entity: %w", err)
	}
	return nil
}

func describe(key []byte) string {
	return fmt.Sprintf("%x", key)
}
