package absorb

import (
	"math"
	"testing"
)

func twoEffectVector(t *testing.T) (*FixedEffectVector, []*FixedEffect) {
	t.Helper()
	fe1, err := NewFixedEffect([]int{1, 1, 2, 2}, 2, nil, nil)
	if err != nil {
		t.Fatalf("Failed to build fixed effect: %v", err)
	}
	fe2, err := NewFixedEffect([]int{1, 2, 3, 1}, 3, nil, nil)
	if err != nil {
		t.Fatalf("Failed to build fixed effect: %v", err)
	}
	fes := []*FixedEffect{fe1, fe2}
	return NewFixedEffectVector(fes), fes
}

func TestFixedEffectVector_Length(t *testing.T) {
	v, _ := twoEffectVector(t)
	if v.Len() != 5 {
		t.Errorf("Expected length 5 (2+3 groups), got %d", v.Len())
	}
}

func TestFixedEffectVector_CopyDoesNotAlias(t *testing.T) {
	v, fes := twoEffectVector(t)
	v.Fill(1)

	w := NewFixedEffectVector(fes)
	w.CopyFrom(v)
	v.Fill(7)

	for _, b := range w.Blocks() {
		for i, x := range b {
			if x != 1 {
				t.Errorf("Copy shares storage with source: got %f at %d", x, i)
			}
		}
	}
}

func TestFixedEffectVector_Ops(t *testing.T) {
	v, fes := twoEffectVector(t)
	v.Fill(2)
	v.Scale(1.5) // every element 3

	w := NewFixedEffectVector(fes)
	w.Fill(1)
	w.AddScaled(-2, v) // every element 1 - 6 = -5

	for _, b := range w.Blocks() {
		for i, x := range b {
			if x != -5 {
				t.Errorf("AddScaled: expected -5, got %f at %d", x, i)
			}
		}
	}

	wantNorm := math.Sqrt(25 * 5)
	if math.Abs(w.Norm()-wantNorm) > 1e-12 {
		t.Errorf("Expected norm %f, got %f", wantNorm, w.Norm())
	}

	if got := w.Dot(v); math.Abs(got-(-5*3*5)) > 1e-12 {
		t.Errorf("Expected dot -75, got %f", got)
	}
}
