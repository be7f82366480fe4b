// Package log defines standard attribute keys for solver telemetry.
//
// Using these keys consistently across logging call sites keeps the JSON
// output filterable: every residualization batch reports the same field
// names for its shape, configuration, and outcome.
package log

// Problem shape
const (
	// ObservationsKey is the number of observations (rows) in the problem.
	ObservationsKey = "problem.observations"

	// FixedEffectsKey is the number of absorbed categorical variables.
	FixedEffectsKey = "problem.fixed_effects"

	// GroupsKey is the total number of groups across all fixed effects,
	// i.e. the column dimension of the implicit operator.
	GroupsKey = "problem.groups"

	// ColumnsKey is the number of right-hand-side columns in a batch.
	ColumnsKey = "problem.columns"
)

// Solver configuration
const (
	// AlgorithmKey names the iterative algorithm ("lsmr" or "cgls").
	AlgorithmKey = "solver.algorithm"

	// DispatchKey names the batch dispatch strategy
	// ("sequential", "threads", "workers").
	DispatchKey = "solver.dispatch"

	// ToleranceKey is the configured convergence tolerance.
	ToleranceKey = "solver.tolerance"

	// MaxIterationsKey is the configured iteration cap.
	MaxIterationsKey = "solver.max_iterations"

	// WorkersKey is the worker count for concurrent dispatch.
	WorkersKey = "solver.workers"
)

// Outcome
const (
	// IterationsKey is the iteration count of a completed solve.
	IterationsKey = "solve.iterations"

	// ConvergedKey reports whether the stopping rule was satisfied
	// before the iteration cap.
	ConvergedKey = "solve.converged"

	// ResidualNormKey is the final residual norm of a solve.
	ResidualNormKey = "solve.residual_norm"

	// DurationMsKey records wall-clock time of an operation in
	// milliseconds.
	DurationMsKey = "perf.duration_ms"
)
