package absorb

import (
	"gonum.org/v1/gonum/floats"
)

// machineEps is the double-precision machine epsilon, the floor under the
// CGLS energy tests.
const machineEps = 0x1p-52

// cglsState runs preconditioned conjugate gradient on the normal equations
// AᵀA·x = Aᵀr. The residual is updated in place, so the driver yields the
// residualized column directly without a final forward application. The
// workspace is reused across sequential solves and must not be shared
// across concurrent ones.
type cglsState struct {
	op Operator

	invdiag *FixedEffectVector // inverse diagonal of AᵀA

	s    *FixedEffectVector // gradient Aᵀr
	p    *FixedEffectVector // search direction
	z    *FixedEffectVector // preconditioned gradient
	ptmp *FixedEffectVector // AᵀA·p
	q    []float64          // A·p

	tol     float64
	maxIter int

	recordResiduals bool
	residuals       []float64

	lastIterations int
}

func newCGLSState(op Operator, cfg config) *cglsState {
	m, _ := op.Dims()
	st := &cglsState{
		op:              op,
		invdiag:         op.NewVector().(*FixedEffectVector),
		s:               op.NewVector().(*FixedEffectVector),
		p:               op.NewVector().(*FixedEffectVector),
		z:               op.NewVector().(*FixedEffectVector),
		ptmp:            op.NewVector().(*FixedEffectVector),
		q:               make([]float64, m),
		tol:             cfg.tolerance,
		maxIter:         cfg.maxIterations,
		recordResiduals: cfg.recordResiduals,
	}
	if fem, ok := op.(*FixedEffectMatrix); ok {
		fem.normalDiagTo(st.invdiag)
	} else {
		st.invdiag.Fill(1)
	}
	for _, b := range st.invdiag.blocks {
		for i, d := range b {
			if d > 0 {
				b[i] = 1 / d
			} else {
				b[i] = 1 // empty group: identity scaling
			}
		}
	}
	return st
}

func (st *cglsState) iterations() int { return st.lastIterations }

func (st *cglsState) residualHistory() []float64 { return st.residuals }

// solve minimizes ‖A·x − r‖, destructively turning r into the residual
// r − A·x. x may be nil when only the residual is needed. It returns
// whether the stopping rule fired before the iteration cap.
//
// Convergence is the three-test disjunction: the first iteration's energy
// drop already below tol²·ν, an energy term under machine epsilon, or the
// last three drops together under tol²·ν. The window keeps one noisy
// iteration from stopping the solve early and a slowly-decaying tail from
// running it long past usefulness.
func (st *cglsState) solve(x Vector, r []float64) bool {
	st.lastIterations = 0
	st.residuals = st.residuals[:0]

	if x != nil {
		x.Fill(0)
	}

	st.op.MulTransVecTo(st.s, 1, r, 0)
	mulElemTo(st.z, st.s, st.invdiag)
	ssr := st.s.Dot(st.z)

	// Running energy estimate: how much squared residual is left for the
	// projection to remove.
	rnorm := floats.Norm(r, 2)
	nu := rnorm * rnorm

	if ssr <= machineEps {
		// Already orthogonal to every group.
		return true
	}

	st.p.CopyFrom(st.z)

	tol2 := st.tol * st.tol
	var psiWindow [3]float64

	for iter := 1; iter <= st.maxIter; iter++ {
		st.lastIterations = iter

		st.op.MulVecTo(st.q, 1, st.p, 0)
		st.op.MulTransVecTo(st.ptmp, 1, st.q, 0)

		pAp := st.ptmp.Dot(st.p)
		if pAp <= 0 {
			// Search direction carries no energy; nothing left to
			// remove.
			return true
		}
		alpha := ssr / pAp

		psi := alpha * ssr
		nu -= psi
		psiWindow[(iter-1)%3] = psi

		if x != nil {
			x.AddScaled(alpha, st.p)
		}
		floats.AddScaled(r, -alpha, st.q)
		st.s.AddScaled(-alpha, st.ptmp)
		mulElemTo(st.z, st.s, st.invdiag)
		ssrNew := st.s.Dot(st.z)

		if st.recordResiduals {
			st.residuals = append(st.residuals, floats.Norm(r, 2))
		}

		switch {
		case iter == 1 && psi <= tol2*nu:
			return true
		case ssrNew <= machineEps:
			return true
		case psi <= machineEps:
			return true
		case iter >= 3 && psiWindow[0]+psiWindow[1]+psiWindow[2] <= tol2*nu:
			return true
		}

		beta := ssrNew / ssr
		st.p.Scale(beta)
		st.p.AddScaled(1, st.z)
		ssr = ssrNew
	}

	return false
}
