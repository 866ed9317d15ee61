// Package agg implements the Aggregation calculation family: Sum,
// Average, Min, Max, Count, StandardDeviation (population), Median,
// Percentile (nearest-rank) and WeightedAverage.
//
// No statistics/aggregation library appears anywhere in the reference
// pack (grepped other_examples/ for StandardDeviation/Percentile —
// matches were unrelated), so this is hand-written against math/sort.
package agg

import (
	"fmt"
	"math"
	"sort"
)

// Apply dispatches on op against values, per §4.3's aggregation table.
// An empty values slice is always an error.
func Apply(op string, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("agg: empty input set")
	}
	switch op {
	case "Sum":
		return Sum(values), nil
	case "Average":
		return Average(values), nil
	case "Min":
		return Min(values), nil
	case "Max":
		return Max(values), nil
	case "Count":
		return float64(len(values)), nil
	case "StandardDeviation":
		return StandardDeviation(values), nil
	case "Median":
		return Median(values), nil
	default:
		return 0, fmt.Errorf("agg: operation %q requires a parameter, use Percentile/WeightedAverage directly", op)
	}
}

func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func Average(values []float64) float64 {
	return Sum(values) / float64(len(values))
}

func Min(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func Max(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// StandardDeviation is the population standard deviation (divides by N,
// not N-1).
func StandardDeviation(values []float64) float64 {
	mean := Average(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Median is Percentile(values, 50): nearest-rank, not average-of-two-
// middle-values, so it agrees with Percentile on every input including
// even-length ones (invariant #10).
func Median(values []float64) float64 {
	m, _ := Percentile(values, 50)
	return m
}

// Percentile uses the nearest-rank method: p must be in [0, 100].
func Percentile(values []float64, p float64) (float64, error) {
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("agg: percentile %v out of range [0,100]", p)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1], nil
}

// WeightedAverage requires len(weights) == len(values) and a non-zero
// weight sum.
func WeightedAverage(values, weights []float64) (float64, error) {
	if len(values) != len(weights) {
		return 0, fmt.Errorf("agg: weighted average length mismatch: %d values, %d weights", len(values), len(weights))
	}
	var weightedSum, weightSum float64
	for i, v := range values {
		weightedSum += v * weights[i]
		weightSum += weights[i]
	}
	if weightSum == 0 {
		return 0, fmt.Errorf("agg: weighted average: sum of weights is zero")
	}
	return weightedSum / weightSum, nil
}
