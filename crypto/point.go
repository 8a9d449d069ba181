package crypto

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/tari-project/tari-core/model/chain"
)

// Point is a secp256k1 group element. The zero value is the identity.
type Point struct {
	j btcec.JacobianPoint
}

// Identity returns the point at infinity.
func Identity() *Point {
	return &Point{}
}

// PointFromPublicKey decodes a compressed point. The all-zero encoding
// decodes to the identity.
func PointFromPublicKey(k chain.PublicKey) (*Point, error) {
	if k.IsZero() {
		return Identity(), nil
	}
	pk, err := btcec.ParsePubKey(k[:])
	if err != nil {
		return nil, newInvalidInputsErrorf("invalid public key %s: %w", k, err)
	}
	var p Point
	pk.AsJacobian(&p.j)
	return &p, nil
}

// PointFromCommitment decodes a commitment.
func PointFromCommitment(c chain.Commitment) (*Point, error) {
	return PointFromPublicKey(chain.PublicKey(c))
}

// BasePoint returns s*G.
func BasePoint(s *Scalar) *Point {
	var p Point
	btcec.ScalarBaseMultNonConst(&s.s, &p.j)
	return &p
}

// IsIdentity returns true for the point at infinity.
func (p *Point) IsIdentity() bool {
	return (p.j.X.IsZero() && p.j.Y.IsZero()) || p.j.Z.IsZero()
}

// Add returns p + o.
func (p *Point) Add(o *Point) *Point {
	var r Point
	btcec.AddNonConst(&p.j, &o.j, &r.j)
	return &r
}

// Neg returns -p.
func (p *Point) Neg() *Point {
	if p.IsIdentity() {
		return Identity()
	}
	r := *p
	r.j.ToAffine()
	r.j.Y.Negate(1).Normalize()
	return &r
}

// Sub returns p - o.
func (p *Point) Sub(o *Point) *Point {
	return p.Add(o.Neg())
}

// Mul returns s*p.
func (p *Point) Mul(s *Scalar) *Point {
	var r Point
	if p.IsIdentity() || s.IsZero() {
		return &r
	}
	btcec.ScalarMultNonConst(&s.s, &p.j, &r.j)
	return &r
}

// Equal returns true if both points are the same group element.
func (p *Point) Equal(o *Point) bool {
	return p.PublicKey() == o.PublicKey()
}

// PublicKey encodes the point in compressed form.
func (p *Point) PublicKey() chain.PublicKey {
	var out chain.PublicKey
	if p.IsIdentity() {
		return out
	}
	a := p.j
	a.ToAffine()
	copy(out[:], btcec.NewPublicKey(&a.X, &a.Y).SerializeCompressed())
	return out
}

// Commitment encodes the point as a commitment.
func (p *Point) Commitment() chain.Commitment {
	return chain.Commitment(p.PublicKey())
}

// SumCommitments adds decoded commitments.
func SumCommitments(commitments ...chain.Commitment) (*Point, error) {
	sum := Identity()
	for _, c := range commitments {
		p, err := PointFromCommitment(c)
		if err != nil {
			return nil, err
		}
		sum = sum.Add(p)
	}
	return sum, nil
}

// SumPublicKeys adds decoded public keys.
func SumPublicKeys(keys ...chain.PublicKey) (*Point, error) {
	sum := Identity()
	for _, k := range keys {
		p, err := PointFromPublicKey(k)
		if err != nil {
			return nil, err
		}
		sum = sum.Add(p)
	}
	return sum, nil
}

// PublicKeyFromPrivateKey returns k*G.
func PublicKeyFromPrivateKey(k chain.PrivateKey) (chain.PublicKey, error) {
	s, err := ScalarFromPrivateKey(k)
	if err != nil {
		return chain.PublicKey{}, err
	}
	return BasePoint(s).PublicKey(), nil
}
