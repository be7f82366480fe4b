package absorb

import (
	"github.com/statkit/feabsorb/pkg/errors"
)

// Demean projects a single fixed effect out of column in place without
// running an iterative solver. With one categorical variable the
// projection is closed-form: subtract each group's (weighted) mean. The
// per-group coefficients are returned; with unit weights they are the
// group means.
func Demean(column []float64, fe *FixedEffect) ([]float64, error) {
	if len(column) != len(fe.Refs) {
		return nil, errors.NewDimensionError("Demean", len(fe.Refs), len(column), 0)
	}

	coef := make([]float64, fe.NGroups)
	norm := make([]float64, fe.NGroups)
	for i, g := range fe.Refs {
		c := fe.Interaction[i] * fe.SqrtW[i]
		coef[g-1] += c * column[i]
		norm[g-1] += c * c
	}
	for g := range coef {
		if norm[g] > 0 {
			coef[g] /= norm[g]
		}
	}
	for i, g := range fe.Refs {
		c := fe.Interaction[i] * fe.SqrtW[i]
		column[i] -= c * coef[g-1]
	}
	return coef, nil
}
