package absorb

import "runtime"

// Algorithm selects the iterative least-squares method.
type Algorithm int

const (
	// AlgorithmLSMR is the Golub-Kahan bidiagonalization based
	// minimal-residual method. It is the default.
	AlgorithmLSMR Algorithm = iota
	// AlgorithmCGLS is preconditioned conjugate gradient on the normal
	// equations.
	AlgorithmCGLS
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmLSMR:
		return "lsmr"
	case AlgorithmCGLS:
		return "cgls"
	}
	return "unknown"
}

// Dispatch selects how batch residualization distributes columns.
type Dispatch int

const (
	// DispatchSequential solves columns one after another with a single
	// shared solver, amortizing workspace across the batch.
	DispatchSequential Dispatch = iota
	// DispatchThreads partitions columns across goroutine chunks, one
	// private solver per chunk, writing into disjoint output columns.
	DispatchThreads
	// DispatchWorkers feeds columns to a worker pool over channels; each
	// worker owns a private solver and sends copied results back to the
	// coordinator.
	DispatchWorkers
)

func (d Dispatch) String() string {
	switch d {
	case DispatchSequential:
		return "sequential"
	case DispatchThreads:
		return "threads"
	case DispatchWorkers:
		return "workers"
	}
	return "unknown"
}

type config struct {
	tolerance       float64
	maxIterations   int
	condLimit       float64
	algorithm       Algorithm
	dispatch        Dispatch
	workers         int
	recordResiduals bool
}

func defaultConfig() config {
	return config{
		tolerance:     1e-8,
		maxIterations: 10000,
		condLimit:     1e8,
		algorithm:     AlgorithmLSMR,
		dispatch:      DispatchSequential,
		workers:       runtime.NumCPU(),
	}
}

// Option configures a Problem.
type Option func(*config)

// WithTolerance sets the convergence tolerance of the iterative solver.
func WithTolerance(tol float64) Option {
	return func(c *config) {
		c.tolerance = tol
	}
}

// WithMaxIterations sets the iteration cap. Reaching the cap is a soft
// outcome reported through the convergence flag, not an error.
func WithMaxIterations(n int) Option {
	return func(c *config) {
		c.maxIterations = n
	}
}

// WithConditionLimit sets the condition-number estimate at which LSMR
// stops iterating.
func WithConditionLimit(conlim float64) Option {
	return func(c *config) {
		c.condLimit = conlim
	}
}

// WithAlgorithm selects the iterative method.
func WithAlgorithm(a Algorithm) Option {
	return func(c *config) {
		c.algorithm = a
	}
}

// WithDispatch selects the batch dispatch strategy.
func WithDispatch(d Dispatch) Option {
	return func(c *config) {
		c.dispatch = d
	}
}

// WithWorkers sets the worker count for concurrent dispatch. Zero or
// negative means one worker per CPU core.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithResidualHistory records the residual norm of every iteration of the
// most recent single-column solve, retrievable via ResidualHistory.
func WithResidualHistory(record bool) Option {
	return func(c *config) {
		c.recordResiduals = record
	}
}
