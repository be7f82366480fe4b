// Package absorb is an iterative linear-least-squares kernel that projects
// categorical fixed effects out of numeric observation columns without ever
// materializing the implied dummy-variable design matrix.
//
// A problem is described by one or more FixedEffect descriptors (group
// memberships, interaction weights, observation weights, per-group
// preconditioner scales). From those the package builds an implicit,
// Jacobi-preconditioned operator and solves the least-squares system with
// LSMR or CGLS, returning residualized columns or rescaled per-group
// coefficients together with convergence diagnostics.
//
// Basic usage:
//
//	fe, err := absorb.NewFixedEffect(refs, nGroups, nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	problem, err := absorb.NewProblem([]*absorb.FixedEffect{fe})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	iters, converged, err := problem.SolveResiduals(column)
//
// Batches of columns are residualized in place with Residualize, which
// dispatches columns sequentially, across goroutine chunks, or through a
// worker pool depending on configuration. Non-convergence within the
// iteration cap is a soft outcome reported through the diagnostics, not an
// error.
package absorb
