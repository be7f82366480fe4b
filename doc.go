// Package feabsorb provides an iterative least-squares kernel for
// absorbing categorical fixed effects from numeric data, the building
// block behind high-dimensional fixed-effect regressions.
//
// The implicit operator never materializes the dummy-variable design
// matrix: memberships, interaction weights and observation weights are
// kept per effect and applied on the fly, so problems with millions of
// observations and hundreds of thousands of groups fit comfortably in
// memory.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/statkit/feabsorb/absorb"
//	)
//
//	func main() {
//	    fe, err := absorb.NewFixedEffect([]int{1, 1, 2, 2, 3, 3}, 3, nil, nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    problem, err := absorb.NewProblem([]*absorb.FixedEffect{fe})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    column := []float64{1, 3, 2, 4, 5, 7}
//	    iters, converged, err := problem.SolveResiduals(column)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    fmt.Println(column, iters, converged) // [-1 1 -1 1 -1 1] 1 true
//	}
//
// # Packages
//
//   - absorb: fixed-effect descriptors, the implicit operator, the LSMR
//     and CGLS drivers, and batch residualization
//   - core/parallel: chunked goroutine fan-out used by the threaded
//     dispatcher
//   - pkg/errors: structured errors and convergence warnings
//   - pkg/log: slog setup and standard attribute keys for solver telemetry
package feabsorb
