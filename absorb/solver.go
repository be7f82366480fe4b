package absorb

import (
	"github.com/statkit/feabsorb/pkg/errors"
)

// columnSolver bundles an iterative solver state with the coefficient
// vector and scratch column it needs to process one right-hand side at a
// time. A columnSolver is cheap relative to a solve and is never shared
// across concurrently running columns; concurrent dispatch builds one per
// worker.
type columnSolver struct {
	mat *FixedEffectMatrix
	cfg config

	x   *FixedEffectVector
	buf []float64

	lsmr *lsmrState
	cgls *cglsState
}

func newColumnSolver(mat *FixedEffectMatrix, cfg config) *columnSolver {
	m, _ := mat.Dims()
	s := &columnSolver{
		mat: mat,
		cfg: cfg,
		x:   mat.NewVector().(*FixedEffectVector),
		buf: make([]float64, m),
	}
	switch cfg.algorithm {
	case AlgorithmCGLS:
		s.cgls = newCGLSState(mat, cfg)
	default:
		s.lsmr = newLSMRState(mat, cfg)
	}
	return s
}

// solve runs the configured algorithm on r, leaving the solution in s.x
// and the residual in r. Destructive on r.
func (s *columnSolver) solve(r []float64) (iterations int, converged bool) {
	if s.cgls != nil {
		converged = s.cgls.solve(s.x, r)
		return s.cgls.iterations(), converged
	}
	converged = s.lsmr.solve(s.x, r)
	// LSMR leaves r untouched; subtract the fitted projection here so
	// both drivers hand back the residualized column.
	s.mat.MulVecTo(r, -1, s.x, 1)
	return s.lsmr.iterations(), converged
}

func (s *columnSolver) residualHistory() []float64 {
	if s.cgls != nil {
		return s.cgls.residualHistory()
	}
	return s.lsmr.residualHistory()
}

// solveResiduals projects the fixed effects out of r in place. The
// returned error is a NumericalInstabilityError when the result contains a
// non-finite value; callers batching many columns treat that as confined
// to this column.
func (s *columnSolver) solveResiduals(r []float64) (iterations int, converged bool, err error) {
	if err := s.checkColumn(r); err != nil {
		return 0, false, err
	}
	iterations, converged = s.solve(r)
	if !converged {
		errors.Warn(errors.NewConvergenceWarning(s.cfg.algorithm.String(), iterations, ""))
	}
	if err := errors.CheckNumericalStability("SolveResiduals", r, iterations); err != nil {
		return iterations, false, err
	}
	return iterations, converged, nil
}

// solveCoefficients solves against a copy of r and returns the per-effect
// coefficient vectors, rescaled by each effect's original per-group scale
// to undo the Jacobi preconditioning.
func (s *columnSolver) solveCoefficients(r []float64) (coefficients [][]float64, iterations int, converged bool, err error) {
	if err := s.checkColumn(r); err != nil {
		return nil, 0, false, err
	}
	copy(s.buf, r)
	iterations, converged = s.solve(s.buf)
	if !converged {
		errors.Warn(errors.NewConvergenceWarning(s.cfg.algorithm.String(), iterations, ""))
	}

	coefficients = make([][]float64, len(s.mat.fes))
	for k, fe := range s.mat.fes {
		ck := make([]float64, fe.NGroups)
		xk := s.x.blocks[k]
		for g := range ck {
			ck[g] = xk[g] * fe.Scale[g]
		}
		coefficients[k] = ck
	}
	for _, ck := range coefficients {
		if err := errors.CheckNumericalStability("SolveCoefficients", ck, iterations); err != nil {
			return coefficients, iterations, false, err
		}
	}
	return coefficients, iterations, converged, nil
}

func (s *columnSolver) checkColumn(r []float64) error {
	if m, _ := s.mat.Dims(); len(r) != m {
		return errors.NewDimensionError("Solve", m, len(r), 0)
	}
	// A non-finite input would poison every iteration; reject it before
	// the solve so the failure stays confined to this column.
	return errors.CheckNumericalStability("Solve", r, 0)
}
