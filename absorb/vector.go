package absorb

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vector is the coefficient-space contract the iterative solvers require.
// All implementations used with one Operator must share that operator's
// block structure; mixing vectors from different operators panics.
type Vector interface {
	// Len returns the total length of the concatenation.
	Len() int

	// Fill sets every element to v.
	Fill(v float64)

	// Scale multiplies every element by alpha.
	Scale(alpha float64)

	// AddScaled adds alpha times src, elementwise.
	AddScaled(alpha float64, src Vector)

	// CopyFrom copies src without sharing storage.
	CopyFrom(src Vector)

	// Dot returns the Euclidean inner product with other.
	Dot(other Vector) float64

	// Norm returns the Euclidean norm of the concatenation.
	Norm() float64
}

// FixedEffectVector is a concatenation of per-fixed-effect coefficient
// vectors, one block per effect, sized to that effect's group count.
type FixedEffectVector struct {
	blocks [][]float64
	n      int
}

var _ Vector = (*FixedEffectVector)(nil)

// NewFixedEffectVector allocates a zero vector shaped for the given
// fixed-effect set.
func NewFixedEffectVector(fes []*FixedEffect) *FixedEffectVector {
	blocks := make([][]float64, len(fes))
	n := 0
	for k, fe := range fes {
		blocks[k] = make([]float64, fe.NGroups)
		n += fe.NGroups
	}
	return &FixedEffectVector{blocks: blocks, n: n}
}

// Blocks returns the per-effect coefficient slices. The returned slices
// alias the vector's storage.
func (v *FixedEffectVector) Blocks() [][]float64 {
	return v.blocks
}

// Len returns the total length, the sum of the group counts.
func (v *FixedEffectVector) Len() int { return v.n }

// Fill sets every element of every block to val.
func (v *FixedEffectVector) Fill(val float64) {
	for _, b := range v.blocks {
		for i := range b {
			b[i] = val
		}
	}
}

// Scale multiplies every element by alpha.
func (v *FixedEffectVector) Scale(alpha float64) {
	if alpha == 0 {
		v.Fill(0)
		return
	}
	for _, b := range v.blocks {
		floats.Scale(alpha, b)
	}
}

// AddScaled adds alpha times src, elementwise across the concatenation.
func (v *FixedEffectVector) AddScaled(alpha float64, src Vector) {
	for k, b := range v.blocks {
		floats.AddScaled(b, alpha, blocksOf(src, v)[k])
	}
}

// CopyFrom copies src into v. The two vectors never share storage
// afterwards.
func (v *FixedEffectVector) CopyFrom(src Vector) {
	for k, b := range v.blocks {
		copy(b, blocksOf(src, v)[k])
	}
}

// Dot returns the inner product over the full concatenation.
func (v *FixedEffectVector) Dot(other Vector) float64 {
	var d float64
	for k, b := range v.blocks {
		d += floats.Dot(b, blocksOf(other, v)[k])
	}
	return d
}

// Norm returns the Euclidean norm over the full concatenation.
func (v *FixedEffectVector) Norm() float64 {
	var ss float64
	for _, b := range v.blocks {
		n := floats.Norm(b, 2)
		ss += n * n
	}
	return math.Sqrt(ss)
}

// mulElemTo sets dst = a .* b elementwise. Used by the CGLS driver to
// apply its diagonal preconditioner.
func mulElemTo(dst, a, b *FixedEffectVector) {
	for k, d := range dst.blocks {
		ab := a.blocks[k]
		bb := b.blocks[k]
		for i := range d {
			d[i] = ab[i] * bb[i]
		}
	}
}

// blocksOf extracts the block storage of a Vector that must share dst's
// shape.
func blocksOf(src Vector, dst *FixedEffectVector) [][]float64 {
	fv, ok := src.(*FixedEffectVector)
	if !ok {
		panic("absorb: vector is not a FixedEffectVector")
	}
	if fv.n != dst.n || len(fv.blocks) != len(dst.blocks) {
		panic("absorb: mismatched vector shapes")
	}
	return fv.blocks
}
