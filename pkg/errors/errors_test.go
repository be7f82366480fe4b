package errors

import (
	"math"
	"strings"
	"testing"
)

func TestWarnUsesHandler(t *testing.T) {
	var got error
	SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(func(error) {})

	w := NewConvergenceWarning("lsmr", 42, "")
	Warn(w)

	if got != w {
		t.Errorf("Expected the warning to reach the handler, got %v", got)
	}
	if !strings.Contains(w.Error(), "42 iterations") {
		t.Errorf("Unexpected warning message: %s", w.Error())
	}
}

func TestWarnPrefersZerologSink(t *testing.T) {
	handlerCalled := false
	SetWarningHandler(func(error) { handlerCalled = true })
	defer SetWarningHandler(func(error) {})

	var sinkGot error
	SetZerologWarnFunc(func(w error) { sinkGot = w })
	defer SetZerologWarnFunc(nil)

	w := NewConvergenceWarning("cgls", 7, "tolerance too tight")
	Warn(w)

	if sinkGot != w {
		t.Error("Expected the zerolog sink to receive the warning")
	}
	if handlerCalled {
		t.Error("Plain handler must not run when a zerolog sink is set")
	}
}

func TestDimensionErrorRoundTrip(t *testing.T) {
	err := NewDimensionError("Solve", 6, 3, 0)

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatalf("Expected DimensionError, got %v", err)
	}
	if dimErr.Expected != 6 || dimErr.Got != 3 {
		t.Errorf("Unexpected fields: %+v", dimErr)
	}
	if !strings.Contains(err.Error(), "observations") {
		t.Errorf("Axis 0 should be named observations: %s", err.Error())
	}
}

func TestSentinelWrapping(t *testing.T) {
	err := Wrapf(ErrGroupIndexOutOfRange, "refs[%d] = %d", 3, 9)
	if !Is(err, ErrGroupIndexOutOfRange) {
		t.Errorf("Wrapped sentinel lost its identity: %v", err)
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("op", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("Finite values must pass: %v", err)
	}

	nan := []float64{1, math.NaN(), 3}
	err := CheckNumericalStability("op", nan, 5)

	var instab *NumericalInstabilityError
	if !As(err, &instab) {
		t.Fatalf("Expected NumericalInstabilityError, got %v", err)
	}
	if instab.Iteration != 5 {
		t.Errorf("Expected iteration 5, got %d", instab.Iteration)
	}
}
