package absorb

import (
	"math"
	"testing"

	"github.com/statkit/feabsorb/pkg/errors"
)

func TestNewFixedEffect_Defaults(t *testing.T) {
	fe, err := NewFixedEffect([]int{1, 1, 2, 2, 3, 3}, 3, nil, nil)
	if err != nil {
		t.Fatalf("Failed to build fixed effect: %v", err)
	}

	for i, w := range fe.Interaction {
		if w != 1 {
			t.Errorf("Expected unit interaction weight at %d, got %f", i, w)
		}
	}
	for i, w := range fe.SqrtW {
		if w != 1 {
			t.Errorf("Expected unit sqrt weight at %d, got %f", i, w)
		}
	}

	// Two unit observations per group: inverse column norm is 1/sqrt(2).
	want := 1 / math.Sqrt(2)
	for g, s := range fe.Scale {
		if math.Abs(s-want) > 1e-15 {
			t.Errorf("Expected scale %f for group %d, got %f", want, g+1, s)
		}
	}
}

func TestNewFixedEffect_EmptyGroupScale(t *testing.T) {
	fe, err := NewFixedEffect([]int{1, 1, 3}, 3, nil, nil)
	if err != nil {
		t.Fatalf("Failed to build fixed effect: %v", err)
	}
	if fe.Scale[1] != 0 {
		t.Errorf("Expected zero scale for empty group, got %f", fe.Scale[1])
	}
}

func TestNewFixedEffect_Validation(t *testing.T) {
	if _, err := NewFixedEffect(nil, 3, nil, nil); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("Expected ErrEmptyData for empty refs, got %v", err)
	}

	if _, err := NewFixedEffect([]int{1, 2}, 0, nil, nil); err == nil {
		t.Error("Expected error for non-positive group count")
	}

	if _, err := NewFixedEffect([]int{1, 4}, 3, nil, nil); !errors.Is(err, errors.ErrGroupIndexOutOfRange) {
		t.Errorf("Expected ErrGroupIndexOutOfRange, got %v", err)
	}
	if _, err := NewFixedEffect([]int{0, 1}, 3, nil, nil); !errors.Is(err, errors.ErrGroupIndexOutOfRange) {
		t.Errorf("Expected ErrGroupIndexOutOfRange for zero index, got %v", err)
	}

	var dimErr *errors.DimensionError
	if _, err := NewFixedEffect([]int{1, 2}, 2, []float64{1}, nil); !errors.As(err, &dimErr) {
		t.Errorf("Expected DimensionError for short interaction array, got %v", err)
	}
	if _, err := NewFixedEffect([]int{1, 2}, 2, nil, []float64{1, 1, 1}); !errors.As(err, &dimErr) {
		t.Errorf("Expected DimensionError for long sqrt-weight array, got %v", err)
	}
}

func TestNewProblem_Validation(t *testing.T) {
	if _, err := NewProblem(nil); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("Expected ErrEmptyData for empty fixed-effect set, got %v", err)
	}

	fe, err := NewFixedEffect([]int{1, 2}, 2, nil, nil)
	if err != nil {
		t.Fatalf("Failed to build fixed effect: %v", err)
	}

	if _, err := NewProblem([]*FixedEffect{fe}, WithTolerance(0)); err == nil {
		t.Error("Expected error for zero tolerance")
	}
	if _, err := NewProblem([]*FixedEffect{fe}, WithMaxIterations(0)); err == nil {
		t.Error("Expected error for zero iteration cap")
	}

	// Descriptors of different observation counts cannot share a matrix.
	other, err := NewFixedEffect([]int{1, 1, 2}, 2, nil, nil)
	if err != nil {
		t.Fatalf("Failed to build fixed effect: %v", err)
	}
	var dimErr *errors.DimensionError
	if _, err := NewProblem([]*FixedEffect{fe, other}); !errors.As(err, &dimErr) {
		t.Errorf("Expected DimensionError for mismatched observation counts, got %v", err)
	}
}
