package calc

import "fmt"

// Sample is one (timestamp, value) pair from the external history store.
// The store itself is out of scope; TimeSeries operations are pure
// functions over a slice already fetched for the requested window.
type Sample struct {
	TimestampMS int64
	Value       float64
}

// MovingAverage returns the windowed mean at each position where a full
// window is available; it is empty if samples < windowSize.
func MovingAverage(samples []Sample, windowSize int) []float64 {
	if windowSize <= 0 {
		windowSize = 5
	}
	if len(samples) < windowSize {
		return nil
	}
	out := make([]float64, 0, len(samples)-windowSize+1)
	var sum float64
	for i, s := range samples {
		sum += s.Value
		if i >= windowSize {
			sum -= samples[i-windowSize].Value
		}
		if i >= windowSize-1 {
			out = append(out, sum/float64(windowSize))
		}
	}
	return out
}

// RateOfChange computes (v_i - v_{i-1}) / (t_i - t_{i-1}) for each
// consecutive pair, skipping pairs with a zero time delta.
func RateOfChange(samples []Sample) ([]float64, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("calc: rate of change requires at least 2 samples")
	}
	var out []float64
	for i := 1; i < len(samples); i++ {
		dt := samples[i].TimestampMS - samples[i-1].TimestampMS
		if dt == 0 {
			continue
		}
		dv := samples[i].Value - samples[i-1].Value
		out = append(out, dv/float64(dt))
	}
	return out, nil
}
