package absorb

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/statkit/feabsorb/core/parallel"
	"github.com/statkit/feabsorb/pkg/errors"
	applog "github.com/statkit/feabsorb/pkg/log"
)

// Problem exposes the solve capabilities over one fixed-effect set. The
// dispatch strategy behind Residualize is chosen at construction; the
// single-column entry points behave identically on every variant.
//
// Single-column calls on one Problem must not run concurrently with each
// other; concurrent batches go through Residualize.
type Problem interface {
	// SolveResiduals projects the fixed effects out of column in place
	// and reports the iteration count and convergence flag.
	SolveResiduals(column []float64) (iterations int, converged bool, err error)

	// SolveCoefficients returns the per-fixed-effect coefficient
	// vectors for column, rescaled to undo the Jacobi preconditioning.
	// column is not modified.
	SolveCoefficients(column []float64) (coefficients [][]float64, iterations int, converged bool, err error)

	// FixedEffects returns the borrowed descriptors.
	FixedEffects() []*FixedEffect

	// Residualize projects the fixed effects out of every column of X in
	// place and appends one iteration count and one convergence flag per
	// column to the logs. Individual non-converging or non-finite
	// columns do not stop the batch.
	Residualize(X *mat.Dense, iterations *[]int, converged *[]bool) error

	// ResidualHistory returns the per-iteration residual norms of the
	// most recent single-column solve when history recording is enabled,
	// nil otherwise.
	ResidualHistory() []float64
}

// NewProblem validates the fixed-effect set, builds the implicit operator
// and its caches once, and returns the Problem variant selected by the
// configured dispatch strategy.
func NewProblem(fes []*FixedEffect, opts ...Option) (Problem, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tolerance <= 0 {
		return nil, errors.NewValidationError("tolerance", "must be positive", cfg.tolerance)
	}
	if cfg.maxIterations <= 0 {
		return nil, errors.NewValidationError("maxIterations", "must be positive", cfg.maxIterations)
	}

	fem, err := NewFixedEffectMatrix(fes)
	if err != nil {
		return nil, err
	}

	base := problemBase{mat: fem, cfg: cfg}
	switch cfg.dispatch {
	case DispatchThreads:
		return &threadedProblem{problemBase: base}, nil
	case DispatchWorkers:
		return &workerProblem{problemBase: base}, nil
	default:
		return &sequentialProblem{problemBase: base}, nil
	}
}

// problemBase implements the single-column operations shared by every
// dispatch variant through one lazily built solver.
type problemBase struct {
	mat *FixedEffectMatrix
	cfg config
	sol *columnSolver
}

func (p *problemBase) solver() *columnSolver {
	if p.sol == nil {
		p.sol = newColumnSolver(p.mat, p.cfg)
	}
	return p.sol
}

func (p *problemBase) SolveResiduals(column []float64) (int, bool, error) {
	return p.solver().solveResiduals(column)
}

func (p *problemBase) SolveCoefficients(column []float64) ([][]float64, int, bool, error) {
	return p.solver().solveCoefficients(column)
}

func (p *problemBase) FixedEffects() []*FixedEffect { return p.mat.FixedEffects() }

func (p *problemBase) ResidualHistory() []float64 {
	if p.sol == nil {
		return nil
	}
	return p.sol.residualHistory()
}

// logBatch emits one structured record per completed batch.
func (p *problemBase) logBatch(cols int, start time.Time) {
	m, n := p.mat.Dims()
	slog.Debug("residualized matrix",
		slog.Int(applog.ObservationsKey, m),
		slog.Int(applog.GroupsKey, n),
		slog.Int(applog.FixedEffectsKey, len(p.mat.fes)),
		slog.Int(applog.ColumnsKey, cols),
		slog.String(applog.AlgorithmKey, p.cfg.algorithm.String()),
		slog.String(applog.DispatchKey, p.cfg.dispatch.String()),
		slog.Int64(applog.DurationMsKey, time.Since(start).Milliseconds()),
	)
}

// checkMatrix validates the batch shape against the operator.
func (p *problemBase) checkMatrix(X *mat.Dense) (cols int, err error) {
	rows, cols := X.Dims()
	m, _ := p.mat.Dims()
	if rows != m {
		return 0, errors.NewDimensionError("Residualize", m, rows, 0)
	}
	return cols, nil
}

// softColumnError reports whether err is confined to a single column's
// numeric result rather than a problem-level failure.
func softColumnError(err error) bool {
	var instab *errors.NumericalInstabilityError
	return errors.As(err, &instab)
}

// sequentialProblem solves the batch one column at a time, reusing one
// solver's workspace across columns.
type sequentialProblem struct {
	problemBase
}

func (p *sequentialProblem) Residualize(X *mat.Dense, iterations *[]int, converged *[]bool) error {
	start := time.Now()
	cols, err := p.checkMatrix(X)
	if err != nil {
		return err
	}

	sol := p.solver()
	m, _ := p.mat.Dims()
	buf := make([]float64, m)
	for j := 0; j < cols; j++ {
		mat.Col(buf, j, X)
		iters, ok, err := sol.solveResiduals(buf)
		if err != nil && !softColumnError(err) {
			return err
		}
		X.SetCol(j, buf)
		*iterations = append(*iterations, iters)
		*converged = append(*converged, ok && err == nil)
	}

	p.logBatch(cols, start)
	return nil
}

// threadedProblem partitions columns across goroutine chunks. Every chunk
// builds a private solver against the shared immutable operator and writes
// into disjoint columns of X; diagnostics are merged only after the
// parallel region completes.
type threadedProblem struct {
	problemBase
}

func (p *threadedProblem) Residualize(X *mat.Dense, iterations *[]int, converged *[]bool) error {
	start := time.Now()
	cols, err := p.checkMatrix(X)
	if err != nil {
		return err
	}

	m, _ := p.mat.Dims()
	iters := make([]int, cols)
	conv := make([]bool, cols)
	errs := make([]error, cols)

	parallel.ParallelizeWithWorkers(cols, p.cfg.workers, func(startCol, endCol int) {
		sol := newColumnSolver(p.mat, p.cfg)
		buf := make([]float64, m)
		for j := startCol; j < endCol; j++ {
			mat.Col(buf, j, X)
			it, ok, err := sol.solveResiduals(buf)
			if err != nil && !softColumnError(err) {
				errs[j] = err
				return
			}
			X.SetCol(j, buf)
			iters[j] = it
			conv[j] = ok && err == nil
		}
	})

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	*iterations = append(*iterations, iters...)
	*converged = append(*converged, conv...)
	p.logBatch(cols, start)
	return nil
}

// workerProblem feeds column indices to a worker pool and merges copied
// results on the coordinator, so no solver state or column storage is ever
// shared between concurrently running solves.
type workerProblem struct {
	problemBase
}

type columnResult struct {
	col       int
	residual  []float64
	iters     int
	converged bool
}

func (p *workerProblem) Residualize(X *mat.Dense, iterations *[]int, converged *[]bool) error {
	start := time.Now()
	cols, err := p.checkMatrix(X)
	if err != nil {
		return err
	}

	workers := p.cfg.workers
	if workers <= 0 || workers > cols {
		workers = min(cols, defaultConfig().workers)
	}

	jobs := make(chan int)
	results := make(chan columnResult, cols)

	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		g.Go(func() (err error) {
			// A panicking worker must fail the batch, not the process.
			defer errors.Recover(&err, "Residualize")

			sol := newColumnSolver(p.mat, p.cfg)
			for j := range jobs {
				col := mat.Col(nil, j, X)
				it, ok, err := sol.solveResiduals(col)
				if err != nil && !softColumnError(err) {
					return err
				}
				results <- columnResult{col: j, residual: col, iters: it, converged: ok && err == nil}
			}
			return nil
		})
	}

	go func() {
		defer close(jobs)
		for j := 0; j < cols; j++ {
			select {
			case jobs <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := g.Wait(); err != nil {
		return err
	}
	close(results)

	iters := make([]int, cols)
	conv := make([]bool, cols)
	for res := range results {
		X.SetCol(res.col, res.residual)
		iters[res.col] = res.iters
		conv[res.col] = res.converged
	}

	*iterations = append(*iterations, iters...)
	*converged = append(*converged, conv...)
	p.logBatch(cols, start)
	return nil
}
