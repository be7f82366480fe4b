package absorb

import (
	"gonum.org/v1/gonum/floats"

	"github.com/statkit/feabsorb/core/parallel"
	"github.com/statkit/feabsorb/pkg/errors"
)

// forwardParallelThreshold is the observation count above which the
// forward gather fans out across goroutine chunks. Each row accumulates
// independently, so chunking by row keeps results bit-identical to the
// sequential pass.
const forwardParallelThreshold = 50000

// Operator is the observation-space linear-operator contract the iterative
// solvers consume. Forward application maps coefficient space into
// observation space; adjoint application maps back.
type Operator interface {
	// Dims returns the operator dimensions: m observations by n total
	// groups.
	Dims() (rows, cols int)

	// NewVector allocates a zero coefficient-space vector shaped for
	// this operator.
	NewVector() Vector

	// MulVecTo computes dst = alpha*A*x + beta*dst, where dst lives in
	// observation space.
	MulVecTo(dst []float64, alpha float64, x Vector, beta float64)

	// MulTransVecTo computes dst = alpha*Aᵀ*y + beta*dst, where dst
	// lives in coefficient space.
	MulTransVecTo(dst Vector, alpha float64, y []float64, beta float64)
}

// FixedEffectMatrix is the horizontal concatenation of the implicit
// (one-hot × interaction × weight) matrices of all fixed effects, with the
// per-group Jacobi scales folded in. The dense matrix is never formed:
// forward application is a gather over the per-effect row caches, adjoint
// application a scatter-add into group slots.
type FixedEffectMatrix struct {
	fes   []*FixedEffect
	cache [][]float64 // per effect: scale[ref]*interaction*sqrtw, len m
	m, n  int
}

var _ Operator = (*FixedEffectMatrix)(nil)

// NewFixedEffectMatrix builds the implicit operator for a fixed-effect
// set. The descriptors are borrowed, not copied; they must not change for
// the lifetime of the matrix. The per-effect row cache is computed here in
// one O(m) pass per effect so the solve loops never repeat the triple
// product.
func NewFixedEffectMatrix(fes []*FixedEffect) (*FixedEffectMatrix, error) {
	if len(fes) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewFixedEffectMatrix: empty fixed-effect set")
	}
	m := len(fes[0].Refs)
	n := 0
	for k, fe := range fes {
		if len(fe.Refs) != m {
			return nil, errors.NewDimensionError("NewFixedEffectMatrix", m, len(fe.Refs), 0)
		}
		if len(fe.Interaction) != m || len(fe.SqrtW) != m {
			return nil, errors.NewDimensionError("NewFixedEffectMatrix", m, len(fe.Interaction), 0)
		}
		if len(fe.Scale) != fe.NGroups {
			return nil, errors.NewDimensionError("NewFixedEffectMatrix", fe.NGroups, len(fe.Scale), 1)
		}
		for i, g := range fe.Refs {
			if g < 1 || g > fe.NGroups {
				return nil, errors.Wrapf(errors.ErrGroupIndexOutOfRange,
					"NewFixedEffectMatrix: fixed effect %d, refs[%d] = %d, want [1, %d]", k, i, g, fe.NGroups)
			}
		}
		n += fe.NGroups
	}

	cache := make([][]float64, len(fes))
	for k, fe := range fes {
		ck := make([]float64, m)
		for i, g := range fe.Refs {
			ck[i] = fe.Scale[g-1] * fe.Interaction[i] * fe.SqrtW[i]
		}
		cache[k] = ck
	}

	return &FixedEffectMatrix{fes: fes, cache: cache, m: m, n: n}, nil
}

// Dims returns m observations by n total groups.
func (a *FixedEffectMatrix) Dims() (rows, cols int) { return a.m, a.n }

// FixedEffects returns the borrowed descriptors.
func (a *FixedEffectMatrix) FixedEffects() []*FixedEffect { return a.fes }

// NewVector allocates a zero coefficient vector shaped for this operator.
func (a *FixedEffectMatrix) NewVector() Vector { return NewFixedEffectVector(a.fes) }

// MulVecTo computes dst = alpha*A*x + beta*dst without forming A. The
// inner gather over observations is independent per row.
func (a *FixedEffectMatrix) MulVecTo(dst []float64, alpha float64, x Vector, beta float64) {
	if len(dst) != a.m {
		panic("absorb: mismatched observation vector length")
	}
	blocks := blocksOfOperand(x, a)

	switch beta {
	case 0:
		for i := range dst {
			dst[i] = 0
		}
	case 1:
	default:
		floats.Scale(beta, dst)
	}

	parallel.ParallelizeWithThreshold(a.m, forwardParallelThreshold, func(start, end int) {
		for k, fe := range a.fes {
			xk := blocks[k]
			ck := a.cache[k]
			refs := fe.Refs[start:end]
			for i, g := range refs {
				dst[start+i] += alpha * xk[g-1] * ck[start+i]
			}
		}
	})
}

// MulTransVecTo computes dst = alpha*Aᵀ*y + beta*dst without forming A.
// The scatter-add writes into shared group slots and must stay sequential
// over observations.
func (a *FixedEffectMatrix) MulTransVecTo(dst Vector, alpha float64, y []float64, beta float64) {
	if len(y) != a.m {
		panic("absorb: mismatched observation vector length")
	}
	fv, ok := dst.(*FixedEffectVector)
	if !ok {
		panic("absorb: vector is not a FixedEffectVector")
	}
	if fv.n != a.n || len(fv.blocks) != len(a.fes) {
		panic("absorb: mismatched vector shape for operator")
	}

	switch beta {
	case 0:
		fv.Fill(0)
	case 1:
	default:
		fv.Scale(beta)
	}

	for k, fe := range a.fes {
		dk := fv.blocks[k]
		ck := a.cache[k]
		for i, g := range fe.Refs {
			dk[g-1] += alpha * y[i] * ck[i]
		}
	}
}

// normalDiagTo fills dst with the diagonal of AᵀA, one entry per group.
// CGLS inverts it as its preconditioner.
func (a *FixedEffectMatrix) normalDiagTo(dst *FixedEffectVector) {
	dst.Fill(0)
	for k, fe := range a.fes {
		dk := dst.blocks[k]
		ck := a.cache[k]
		for i, g := range fe.Refs {
			dk[g-1] += ck[i] * ck[i]
		}
	}
}

func blocksOfOperand(x Vector, a *FixedEffectMatrix) [][]float64 {
	fv, ok := x.(*FixedEffectVector)
	if !ok {
		panic("absorb: vector is not a FixedEffectVector")
	}
	if fv.n != a.n || len(fv.blocks) != len(a.fes) {
		panic("absorb: mismatched vector shape for operator")
	}
	return fv.blocks
}
