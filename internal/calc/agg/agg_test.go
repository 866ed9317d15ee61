package agg

import "testing"

func approxEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestApplyBasicOperations(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	cases := map[string]float64{
		"Sum":     15,
		"Average": 3,
		"Min":     1,
		"Max":     5,
		"Count":   5,
		"Median":  3,
	}
	for op, want := range cases {
		got, err := Apply(op, values)
		if err != nil {
			t.Fatalf("%s: %v", op, err)
		}
		if !approxEqual(got, want) {
			t.Errorf("%s: want %v got %v", op, want, got)
		}
	}
}

func TestStandardDeviationPopulation(t *testing.T) {
	got, err := Apply("StandardDeviation", []float64{2, 4, 4, 4, 5, 5, 7, 9})
	if err != nil {
		t.Fatalf("stddev: %v", err)
	}
	if !approxEqual(got, 2) {
		t.Errorf("want 2 got %v", got)
	}
}

func TestApplyEmptyInputErrors(t *testing.T) {
	if _, err := Apply("Sum", nil); err == nil {
		t.Error("expected error for empty input")
	}
}

// TestMedianEvenLengthIsNearestRank covers invariant #10: median must
// agree with Percentile(values, 50), not the conventional average of the
// two middle values (which would give 2.5 here instead of 2).
func TestMedianEvenLengthIsNearestRank(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	got, err := Apply("Median", values)
	if err != nil {
		t.Fatalf("median: %v", err)
	}
	want, err := Percentile(values, 50)
	if err != nil {
		t.Fatalf("percentile: %v", err)
	}
	if got != want {
		t.Errorf("want Median == Percentile(values,50) == %v, got %v", want, got)
	}
	if got != 2 {
		t.Errorf("want nearest-rank median 2 got %v", got)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	got, err := Percentile(values, 50)
	if err != nil {
		t.Fatalf("percentile: %v", err)
	}
	if got != 30 {
		t.Errorf("want 30 got %v", got)
	}
}

func TestPercentileOutOfRange(t *testing.T) {
	if _, err := Percentile([]float64{1, 2}, 150); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestWeightedAverage(t *testing.T) {
	got, err := WeightedAverage([]float64{10, 20}, []float64{1, 1})
	if err != nil {
		t.Fatalf("weighted average: %v", err)
	}
	if got != 15 {
		t.Errorf("want 15 got %v", got)
	}
}

func TestWeightedAverageLengthMismatch(t *testing.T) {
	if _, err := WeightedAverage([]float64{1, 2, 3}, []float64{1}); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestWeightedAverageZeroWeightSum(t *testing.T) {
	if _, err := WeightedAverage([]float64{1, 2}, []float64{1, -1}); err == nil {
		t.Error("expected zero weight sum error")
	}
}
