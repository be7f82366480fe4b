package absorb

import (
	"math"

	"github.com/statkit/feabsorb/pkg/errors"
)

// FixedEffect describes one absorbed categorical variable. It is immutable
// once constructed: the solver layer borrows descriptors by reference and
// never copies or mutates them.
type FixedEffect struct {
	// Refs holds the 1-based group index of each observation.
	Refs []int

	// Interaction holds the per-observation interaction weight.
	Interaction []float64

	// SqrtW holds the square root of each observation's analytic weight.
	SqrtW []float64

	// Scale holds one value per group, acting as a Jacobi preconditioner
	// on the implicit dummy-variable columns. NewFixedEffect sets it to
	// the inverse column norm.
	Scale []float64

	// NGroups is the number of groups G; every Refs entry lies in [1, G].
	NGroups int
}

// NewFixedEffect validates and builds a fixed-effect descriptor for m
// observations. interaction and sqrtw may be nil, which means unit
// weights. The per-group Scale is the inverse Euclidean norm of the
// implicit weighted dummy column, so the preconditioned columns have unit
// norm; groups with no observations get scale zero.
func NewFixedEffect(refs []int, nGroups int, interaction, sqrtw []float64) (*FixedEffect, error) {
	m := len(refs)
	if m == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewFixedEffect: empty group index array")
	}
	if nGroups <= 0 {
		return nil, errors.NewValidationError("nGroups", "must be positive", nGroups)
	}
	if interaction == nil {
		interaction = ones(m)
	} else if len(interaction) != m {
		return nil, errors.NewDimensionError("NewFixedEffect", m, len(interaction), 0)
	}
	if sqrtw == nil {
		sqrtw = ones(m)
	} else if len(sqrtw) != m {
		return nil, errors.NewDimensionError("NewFixedEffect", m, len(sqrtw), 0)
	}
	for i, g := range refs {
		if g < 1 || g > nGroups {
			return nil, errors.Wrapf(errors.ErrGroupIndexOutOfRange,
				"NewFixedEffect: refs[%d] = %d, want [1, %d]", i, g, nGroups)
		}
	}

	fe := &FixedEffect{
		Refs:        refs,
		Interaction: interaction,
		SqrtW:       sqrtw,
		NGroups:     nGroups,
	}
	fe.Scale = inverseNormScale(fe)
	return fe, nil
}

// inverseNormScale computes, per group, the inverse norm of the weighted
// dummy column implied by the descriptor.
func inverseNormScale(fe *FixedEffect) []float64 {
	scale := make([]float64, fe.NGroups)
	for i, g := range fe.Refs {
		w := fe.Interaction[i] * fe.SqrtW[i]
		scale[g-1] += w * w
	}
	for g, v := range scale {
		if v > 0 {
			scale[g] = 1 / math.Sqrt(v)
		}
	}
	return scale
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
