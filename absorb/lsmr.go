package absorb

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// lsmrState runs the LSMR minimal-residual least-squares method of Fong
// and Saunders against the Operator/Vector abstraction. The workspace is
// allocated once and reset, not reallocated, between solves; one state
// must never be shared across concurrent solves.
type lsmrState struct {
	op Operator

	u          []float64 // observation-space Golub-Kahan vector
	v, h, hbar Vector    // coefficient-space workspace

	atol, btol float64
	conlim     float64
	maxIter    int

	recordResiduals bool
	residuals       []float64 // ‖r‖ per iteration of the last solve

	products int // forward+adjoint applications of the last solve
}

func newLSMRState(op Operator, cfg config) *lsmrState {
	m, _ := op.Dims()
	return &lsmrState{
		op:              op,
		u:               make([]float64, m),
		v:               op.NewVector(),
		h:               op.NewVector(),
		hbar:            op.NewVector(),
		atol:            cfg.tolerance,
		btol:            cfg.tolerance,
		conlim:          cfg.condLimit,
		maxIter:         cfg.maxIterations,
		recordResiduals: cfg.recordResiduals,
	}
}

// iterations reports the iteration count of the last solve: half the
// matrix-product count, since every bidiagonalization step performs one
// forward and one adjoint application.
func (s *lsmrState) iterations() int { return s.products / 2 }

func (s *lsmrState) residualHistory() []float64 { return s.residuals }

// solve minimizes ‖A·x − b‖ starting from x = 0. b is read, not written.
// It returns whether a stopping test other than the iteration cap fired.
func (s *lsmrState) solve(x Vector, b []float64) bool {
	s.products = 0
	s.residuals = s.residuals[:0]

	ctol := 0.0
	if s.conlim > 0 {
		ctol = 1 / s.conlim
	}

	x.Fill(0)
	copy(s.u, b)

	normb := floats.Norm(s.u, 2)
	beta := normb
	var alpha float64
	if beta > 0 {
		floats.Scale(1/beta, s.u)
		s.op.MulTransVecTo(s.v, 1, s.u, 0)
		s.products++
		alpha = s.v.Norm()
	} else {
		s.v.Fill(0)
	}
	if alpha > 0 {
		s.v.Scale(1 / alpha)
	}

	// Aᵀb = 0 means x = 0 is already the least-squares solution. This
	// covers zero columns and columns orthogonal to every group.
	if alpha*beta == 0 {
		return true
	}

	s.h.CopyFrom(s.v)
	s.hbar.Fill(0)

	// Rotation state, following Fong & Saunders' variable names.
	zetabar := alpha * beta
	alphabar := alpha
	rho := 1.0
	rhobar := 1.0
	cbar := 1.0
	sbar := 0.0

	// State for the ‖r‖ estimate.
	betadd := beta
	betad := 0.0
	rhodold := 1.0
	tautildeold := 0.0
	thetatilde := 0.0
	zeta := 0.0

	// Norm estimates.
	normA2 := alpha * alpha
	maxrbar := 0.0
	minrbar := math.MaxFloat64

	for itn := 0; itn < s.maxIter; itn++ {
		// Next step of the Golub-Kahan bidiagonalization.
		s.op.MulVecTo(s.u, 1, s.v, -alpha)
		s.products++
		beta = floats.Norm(s.u, 2)
		if beta > 0 {
			floats.Scale(1/beta, s.u)
			s.op.MulTransVecTo(s.v, 1, s.u, -beta)
			s.products++
			alpha = s.v.Norm()
			if alpha > 0 {
				s.v.Scale(1 / alpha)
			}
		}

		// Plane rotation to eliminate the subdiagonal element.
		rhoold := rho
		var c, cs float64
		c, cs, rho = symOrtho(alphabar, beta)
		thetanew := cs * alpha
		alphabar = c * alpha

		// Second rotation to eliminate the superdiagonal element.
		rhobarold := rhobar
		zetaold := zeta
		thetabar := sbar * rho
		rhotemp := cbar * rho
		cbar, sbar, rhobar = symOrtho(cbar*rho, thetanew)
		zeta = cbar * zetabar
		zetabar = -sbar * zetabar

		// Update h, hbar and the solution.
		s.hbar.Scale(-thetabar * rho / (rhoold * rhobarold))
		s.hbar.AddScaled(1, s.h)
		x.AddScaled(zeta/(rho*rhobar), s.hbar)
		s.h.Scale(-thetanew / rho)
		s.h.AddScaled(1, s.v)

		// Estimate ‖r‖ from the rotation state.
		betahat := c * betadd
		betadd = -cs * betadd

		thetatildeold := thetatilde
		var ctildeold, stildeold, rhotildeold float64
		ctildeold, stildeold, rhotildeold = symOrtho(rhodold, thetabar)
		thetatilde = stildeold * rhobar
		rhodold = ctildeold * rhobar
		betad = -stildeold*betad + ctildeold*betahat

		tautildeold = (zetaold - thetatildeold*tautildeold) / rhotildeold
		taud := (zeta - thetatilde*tautildeold) / rhodold
		normr := math.Sqrt((betad-taud)*(betad-taud) + betadd*betadd)

		if s.recordResiduals {
			s.residuals = append(s.residuals, normr)
		}

		// Estimate ‖A‖ and cond(A).
		normA2 += beta * beta
		normA := math.Sqrt(normA2)
		normA2 += alpha * alpha
		maxrbar = math.Max(maxrbar, rhobarold)
		if itn > 0 {
			minrbar = math.Min(minrbar, rhobarold)
		}
		condA := math.Max(maxrbar, rhotemp) / math.Min(minrbar, rhotemp)

		// Stopping tests: relative residual, relative normal-equation
		// residual, and the condition estimate against the limit.
		normar := math.Abs(zetabar)
		normx := x.Norm()

		test1 := normr / normb
		test2 := math.Inf(1)
		if normA*normr != 0 {
			test2 = normar / (normA * normr)
		}
		test3 := 1 / condA
		t1 := test1 / (1 + normA*normx/normb)
		rtol := s.btol + s.atol*normA*normx/normb

		if test1 <= rtol || test2 <= s.atol || test3 <= ctol {
			return true
		}
		// Tolerance floors: stop once further progress is below
		// machine precision.
		if 1+t1 <= 1 || 1+test2 <= 1 || 1+test3 <= 1 {
			return true
		}
	}

	return false
}

// symOrtho computes the Givens rotation (c, s, r) with
// [c s; s -c]·[a; b] = [r; 0], guarding against overflow.
func symOrtho(a, b float64) (c, s, r float64) {
	switch {
	case b == 0:
		return math.Copysign(1, a), 0, math.Abs(a)
	case a == 0:
		return 0, math.Copysign(1, b), math.Abs(b)
	case math.Abs(b) > math.Abs(a):
		tau := a / b
		s = math.Copysign(1, b) / math.Sqrt(1+tau*tau)
		c = s * tau
		r = b / s
	default:
		tau := b / a
		c = math.Copysign(1, a) / math.Sqrt(1+tau*tau)
		s = c * tau
		r = a / c
	}
	return c, s, r
}
