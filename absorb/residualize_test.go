package absorb

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomBatch(t *testing.T, seed int64, m, cols int) ([]*FixedEffect, *mat.Dense) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	fes := randomFixedEffects(t, rng, m, []int{4, 3})

	data := make([]float64, m*cols)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return fes, mat.NewDense(m, cols, data)
}

func TestResidualize_DispatchEquivalence(t *testing.T) {
	const m, cols = 30, 6

	fes, X := randomBatch(t, 11, m, cols)

	type result struct {
		out  *mat.Dense
		its  []int
		conv []bool
	}

	run := func(d Dispatch) result {
		p, err := NewProblem(fes, WithDispatch(d), WithWorkers(3))
		require.NoError(t, err)

		out := mat.DenseCopyOf(X)
		var its []int
		var conv []bool
		require.NoError(t, p.Residualize(out, &its, &conv))
		require.Len(t, its, cols)
		require.Len(t, conv, cols)
		return result{out: out, its: its, conv: conv}
	}

	seq := run(DispatchSequential)
	thr := run(DispatchThreads)
	wrk := run(DispatchWorkers)

	for j := 0; j < cols; j++ {
		require.True(t, seq.conv[j], "column %d must converge", j)
		require.Equal(t, seq.conv[j], thr.conv[j])
		require.Equal(t, seq.conv[j], wrk.conv[j])
		require.Equal(t, seq.its[j], thr.its[j], "column %d iteration counts", j)
		require.Equal(t, seq.its[j], wrk.its[j], "column %d iteration counts", j)

		for i := 0; i < m; i++ {
			require.InDelta(t, seq.out.At(i, j), thr.out.At(i, j), 1e-12)
			require.InDelta(t, seq.out.At(i, j), wrk.out.At(i, j), 1e-12)
		}
	}
}

func TestResidualize_AppendsToExistingLogs(t *testing.T) {
	fes, X := randomBatch(t, 5, 12, 3)
	p, err := NewProblem(fes)
	require.NoError(t, err)

	its := []int{-7}
	conv := []bool{false}
	require.NoError(t, p.Residualize(X, &its, &conv))

	require.Len(t, its, 4)
	require.Len(t, conv, 4)
	require.Equal(t, -7, its[0], "existing log entries must be preserved")
}

func TestResidualize_NonFiniteColumnIsConfined(t *testing.T) {
	for _, d := range []Dispatch{DispatchSequential, DispatchThreads, DispatchWorkers} {
		t.Run(d.String(), func(t *testing.T) {
			fes, X := randomBatch(t, 23, 12, 4)
			X.Set(5, 2, math.NaN()) // poison one column

			p, err := NewProblem(fes, WithDispatch(d), WithWorkers(2))
			require.NoError(t, err)

			var its []int
			var conv []bool
			require.NoError(t, p.Residualize(X, &its, &conv))

			require.False(t, conv[2], "poisoned column must not report convergence")
			for _, j := range []int{0, 1, 3} {
				require.True(t, conv[j], "column %d must be unaffected", j)
				for i := 0; i < 12; i++ {
					require.False(t, math.IsNaN(X.At(i, j)), "column %d row %d", j, i)
				}
			}
		})
	}
}

func TestResidualize_RowMismatch(t *testing.T) {
	fes, _ := randomBatch(t, 3, 12, 2)
	p, err := NewProblem(fes)
	require.NoError(t, err)

	X := mat.NewDense(5, 2, nil) // wrong observation count
	var its []int
	var conv []bool
	require.Error(t, p.Residualize(X, &its, &conv))
	require.Empty(t, its)
}

func TestResidualize_ResidualsAreOrthogonal(t *testing.T) {
	fes, X := randomBatch(t, 31, 24, 5)
	p, err := NewProblem(fes, WithTolerance(1e-10))
	require.NoError(t, err)

	var its []int
	var conv []bool
	require.NoError(t, p.Residualize(X, &its, &conv))

	col := make([]float64, 24)
	for j := 0; j < 5; j++ {
		require.True(t, conv[j])
		mat.Col(col, j, X)
		for k, fe := range fes {
			for g, s := range groupSums(col, fe) {
				require.InDelta(t, 0, s, 1e-6, "column %d effect %d group %d", j, k, g+1)
			}
		}
	}
}
