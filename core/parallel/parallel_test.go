package parallel

import (
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversRangeOnce(t *testing.T) {
	const items = 1337
	var hits [items]int32

	Parallelize(items, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	})

	for i, h := range hits {
		if h != 1 {
			t.Errorf("Index %d visited %d times", i, h)
		}
	}
}

func TestParallelizeWithWorkers_SingleWorkerIsSequential(t *testing.T) {
	var ranges [][2]int
	ParallelizeWithWorkers(10, 1, func(start, end int) {
		ranges = append(ranges, [2]int{start, end})
	})

	if len(ranges) != 1 || ranges[0] != [2]int{0, 10} {
		t.Errorf("Expected one full range, got %v", ranges)
	}
}

func TestParallelizeWithThreshold_BelowThresholdIsSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		calls++
		if start != 0 || end != 5 {
			t.Errorf("Expected full range, got [%d, %d)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("Expected one sequential call, got %d", calls)
	}
}

func TestParallelizeZeroItems(t *testing.T) {
	Parallelize(0, func(start, end int) {
		t.Error("Callback must not run for zero items")
	})
}
