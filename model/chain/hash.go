package chain

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// HashLength is the size of every consensus hash in bytes.
const HashLength = 32

// Hash is a fixed 32-byte consensus hash.
type Hash [HashLength]byte

// ZeroHash is the hash used as the previous hash of the genesis header.
var ZeroHash Hash

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero returns true if every byte of the hash is zero.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// HashFromHex decodes a hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("could not decode hash: %w", err)
	}
	if len(b) != HashLength {
		return h, fmt.Errorf("invalid hash length (expected %d, got %d)", HashLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashFromBytes copies the given bytes into a Hash. The slice must be exactly
// HashLength bytes long.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashLength {
		return h, fmt.Errorf("invalid hash length (expected %d, got %d)", HashLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// DomainHasher is a Blake2b-256 hasher that is bound to a domain label, so that
// the same bytes hashed for different purposes never collide. All integers
// are written little-endian; variable-length fields are length prefixed.
type DomainHasher struct {
	h hash.Hash
}

// NewDomainHasher returns a hasher for the given domain label.
func NewDomainHasher(label string) *DomainHasher {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for an oversized key
		panic(err)
	}
	d := &DomainHasher{h: h}
	d.WriteBytes([]byte(label))
	return d
}

// WriteFixed writes bytes without a length prefix.
func (d *DomainHasher) WriteFixed(b []byte) *DomainHasher {
	_, _ = d.h.Write(b)
	return d
}

// WriteBytes writes a length-prefixed byte slice.
func (d *DomainHasher) WriteBytes(b []byte) *DomainHasher {
	d.WriteUint64(uint64(len(b)))
	_, _ = d.h.Write(b)
	return d
}

// WriteUint64 writes a little-endian uint64.
func (d *DomainHasher) WriteUint64(v uint64) *DomainHasher {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = d.h.Write(buf[:])
	return d
}

// WriteUint16 writes a little-endian uint16.
func (d *DomainHasher) WriteUint16(v uint16) *DomainHasher {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, _ = d.h.Write(buf[:])
	return d
}

// WriteUint8 writes a single byte.
func (d *DomainHasher) WriteUint8(v uint8) *DomainHasher {
	_, _ = d.h.Write([]byte{v})
	return d
}

// Finalize returns the digest.
func (d *DomainHasher) Finalize() Hash {
	var out Hash
	copy(out[:], d.h.Sum(nil))
	return out
}
