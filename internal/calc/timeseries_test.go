package calc

import "testing"

func TestMovingAverageBasic(t *testing.T) {
	samples := []Sample{
		{TimestampMS: 1000, Value: 1},
		{TimestampMS: 2000, Value: 2},
		{TimestampMS: 3000, Value: 3},
		{TimestampMS: 4000, Value: 4},
		{TimestampMS: 5000, Value: 5},
		{TimestampMS: 6000, Value: 6},
	}
	got := MovingAverage(samples, 3)
	want := []float64{2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("want %d points got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: want %v got %v", i, want[i], got[i])
		}
	}
}

func TestMovingAverageDefaultWindow(t *testing.T) {
	samples := make([]Sample, 5)
	for i := range samples {
		samples[i] = Sample{TimestampMS: int64(i) * 1000, Value: float64(i + 1)}
	}
	got := MovingAverage(samples, 0)
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("default window: want [3] got %v", got)
	}
}

func TestMovingAverageInsufficientSamples(t *testing.T) {
	samples := []Sample{{TimestampMS: 1000, Value: 1}, {TimestampMS: 2000, Value: 2}}
	if got := MovingAverage(samples, 5); got != nil {
		t.Errorf("want nil for insufficient samples, got %v", got)
	}
}

func TestRateOfChangeBasic(t *testing.T) {
	samples := []Sample{
		{TimestampMS: 1000, Value: 10},
		{TimestampMS: 2000, Value: 20},
		{TimestampMS: 3000, Value: 15},
	}
	got, err := RateOfChange(samples)
	if err != nil {
		t.Fatalf("rate of change: %v", err)
	}
	want := []float64{0.01, -0.005}
	if len(got) != len(want) {
		t.Fatalf("want %d got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: want %v got %v", i, want[i], got[i])
		}
	}
}

func TestRateOfChangeSkipsZeroDelta(t *testing.T) {
	samples := []Sample{
		{TimestampMS: 1000, Value: 10},
		{TimestampMS: 1000, Value: 50},
		{TimestampMS: 2000, Value: 20},
	}
	got, err := RateOfChange(samples)
	if err != nil {
		t.Fatalf("rate of change: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 entry (zero-delta pair skipped) got %d: %v", len(got), got)
	}
}

func TestRateOfChangeRequiresTwoSamples(t *testing.T) {
	if _, err := RateOfChange([]Sample{{TimestampMS: 1000, Value: 1}}); err == nil {
		t.Error("expected error for fewer than 2 samples")
	}
}
