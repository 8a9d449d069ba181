package crypto

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/tari-project/tari-core/model/chain"
)

// Scalar is an element of the secp256k1 scalar field.
type Scalar struct {
	s btcec.ModNScalar
}

// ScalarFromPrivateKey decodes a big-endian scalar. Encodings that are not
// reduced modulo the group order are rejected.
func ScalarFromPrivateKey(k chain.PrivateKey) (*Scalar, error) {
	var s Scalar
	if overflow := s.s.SetByteSlice(k[:]); overflow {
		return nil, newInvalidInputsErrorf("scalar %s is not reduced", k)
	}
	return &s, nil
}

// ScalarFromUint64 returns the scalar for v.
func ScalarFromUint64(v uint64) *Scalar {
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[24:], v)
	var s Scalar
	s.s.SetBytes(&buf)
	return &s
}

// ScalarFromHash reduces a hash modulo the group order.
func ScalarFromHash(h chain.Hash) *Scalar {
	var s Scalar
	buf := [32]byte(h)
	s.s.SetBytes(&buf)
	return &s
}

// Zero returns the zero scalar.
func Zero() *Scalar {
	return &Scalar{}
}

// Add returns s + o.
func (s *Scalar) Add(o *Scalar) *Scalar {
	var r Scalar
	r.s.Add2(&s.s, &o.s)
	return &r
}

// Sub returns s - o.
func (s *Scalar) Sub(o *Scalar) *Scalar {
	var neg Scalar
	neg.s.NegateVal(&o.s)
	return s.Add(&neg)
}

// Mul returns s * o.
func (s *Scalar) Mul(o *Scalar) *Scalar {
	var r Scalar
	r.s.Mul2(&s.s, &o.s)
	return &r
}

// Neg returns -s.
func (s *Scalar) Neg() *Scalar {
	var r Scalar
	r.s.NegateVal(&s.s)
	return &r
}

// IsZero returns true for the zero scalar.
func (s *Scalar) IsZero() bool {
	return s.s.IsZero()
}

// Equal returns true if both scalars are the same element.
func (s *Scalar) Equal(o *Scalar) bool {
	return s.s.Equals(&o.s)
}

// PrivateKey encodes the scalar.
func (s *Scalar) PrivateKey() chain.PrivateKey {
	return chain.PrivateKey(s.s.Bytes())
}

// AddPrivateKeys sums encoded scalars.
func AddPrivateKeys(keys ...chain.PrivateKey) (chain.PrivateKey, error) {
	sum := Zero()
	for _, k := range keys {
		s, err := ScalarFromPrivateKey(k)
		if err != nil {
			return chain.PrivateKey{}, err
		}
		sum = sum.Add(s)
	}
	return sum.PrivateKey(), nil
}

// SubPrivateKeys returns a - b.
func SubPrivateKeys(a, b chain.PrivateKey) (chain.PrivateKey, error) {
	sa, err := ScalarFromPrivateKey(a)
	if err != nil {
		return chain.PrivateKey{}, err
	}
	sb, err := ScalarFromPrivateKey(b)
	if err != nil {
		return chain.PrivateKey{}, err
	}
	return sa.Sub(sb).PrivateKey(), nil
}
