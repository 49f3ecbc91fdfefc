package points

import (
	"errors"
	"math"
	"testing"
)

func TestFitRejectsEmptyInput(t *testing.T) {
	_, err := Fit(nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Fit(nil) error = %v, want ErrEmptyInput", err)
	}
}

func TestFitSingleSample(t *testing.T) {
	d, err := Fit([]float64{42.5})
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if d.Loc != 42.5 {
		t.Errorf("Loc = %f, want 42.5", d.Loc)
	}
	if d.Scale != 1 || d.TopScale != 1 {
		t.Errorf("unexpected degenerate single-sample fit: %+v", d)
	}
}

func TestFitProducesWellFormedParameters(t *testing.T) {
	times := []float64{30.1, 30.5, 31.0, 31.2, 32.0, 33.5, 35.0, 40.0}
	d, err := Fit(times)
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if d.Scale <= 0 {
		t.Errorf("Scale = %f, want > 0", d.Scale)
	}
	if d.TopScale <= 0 {
		t.Errorf("TopScale = %f, want > 0", d.TopScale)
	}
	if math.IsNaN(d.A) || math.IsNaN(d.B) || math.IsNaN(d.Loc) || math.IsNaN(d.Scale) {
		t.Errorf("fit produced NaN parameters: %+v", d)
	}
}

func TestFitHandlesIdenticalTimes(t *testing.T) {
	times := []float64{25.0, 25.0, 25.0, 25.0}
	d, err := Fit(times)
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if math.IsNaN(d.Scale) || math.IsInf(d.Scale, 0) {
		t.Errorf("Scale = %f, want a finite value for zero-variance input", d.Scale)
	}
}

func TestSurvivalFunctionIsMonotonicDecreasing(t *testing.T) {
	d := DistributionParameters{A: 2, B: 0.5, Loc: 30, Scale: 5, TopScale: 1}

	earlier := SurvivalFunction(25, d)
	later := SurvivalFunction(45, d)

	if earlier <= later {
		t.Errorf("SurvivalFunction(25) = %f, SurvivalFunction(45) = %f; expected a faster time to survive more", earlier, later)
	}
}

func TestSurvivalFunctionBounds(t *testing.T) {
	d := DistributionParameters{A: 2, B: 0, Loc: 30, Scale: 5, TopScale: 1}
	for _, time := range []float64{-1000, 0, 30, 1000} {
		sf := SurvivalFunction(time, d)
		if sf < 0 || sf > 1 {
			t.Errorf("SurvivalFunction(%f) = %f, want in [0, 1]", time, sf)
		}
	}
}
