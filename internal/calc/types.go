// Package calc implements the calculation engine: a registry of
// CalculationDefinitions evaluated on demand or on a schedule, deriving
// new points from values already published on the bus.
package calc

import (
	"encoding/json"
	"fmt"
	"time"
)

// Quality mirrors the result's health flag, independent of numeric value.
type Quality int

const (
	QualityGood Quality = iota
	QualityBad
)

func (q Quality) String() string {
	if q == QualityBad {
		return "Bad"
	}
	return "Good"
}

// Status is the coarse success/failure flag on a CalculationResult.
type Status int

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	if s == StatusError {
		return "Error"
	}
	return "Ok"
}

// TriggerKind distinguishes API-triggered definitions from scheduled ones.
type TriggerKind int

const (
	TriggerManual TriggerKind = iota
	TriggerScheduled
)

// ExpressionSpec is the Expression calculation_type payload.
type ExpressionSpec struct {
	Formula   string
	Variables map[string]string // name -> bus_key
}

// AggregationOperation is the closed set of §4.3 aggregation operations.
type AggregationOperation string

const (
	AggSum               AggregationOperation = "Sum"
	AggAverage           AggregationOperation = "Average"
	AggMin               AggregationOperation = "Min"
	AggMax               AggregationOperation = "Max"
	AggCount             AggregationOperation = "Count"
	AggStandardDeviation AggregationOperation = "StandardDeviation"
	AggMedian            AggregationOperation = "Median"
	AggPercentile        AggregationOperation = "Percentile"
	AggWeightedAverage   AggregationOperation = "WeightedAverage"
)

// AggregationSpec is the Aggregation calculation_type payload.
type AggregationSpec struct {
	Operation   AggregationOperation
	SourceKeys  []string
	Percentile  float64   // used when Operation == AggPercentile
	Weights     []float64 // used when Operation == AggWeightedAverage
	TimeWindow  *time.Duration
}

// TimeSeriesOperation is the closed set of §4.3 time-series operations.
type TimeSeriesOperation string

const (
	TSMovingAverage TimeSeriesOperation = "MovingAverage"
	TSRateOfChange  TimeSeriesOperation = "RateOfChange"
)

// TimeSeriesSpec is the TimeSeries calculation_type payload.
type TimeSeriesSpec struct {
	Operation  TimeSeriesOperation
	SourceKey  string
	Parameters map[string]float64
}

// EnergyOperation is the closed set of §4.3 energy formulas.
type EnergyOperation string

const (
	EnergyPowerBalance      EnergyOperation = "PowerBalance"
	EnergyStateOfCharge     EnergyOperation = "StateOfCharge"
	EnergyEfficiency        EnergyOperation = "EnergyEfficiency"
	EnergyLoadForecast      EnergyOperation = "LoadForecast"
	EnergyOptimalDispatch   EnergyOperation = "OptimalDispatch"
	EnergyCostOptimization  EnergyOperation = "CostOptimization"
)

// EnergySpec is the Energy calculation_type payload.
type EnergySpec struct {
	Operation EnergyOperation
	Inputs    map[string]string // name -> bus_key
}

// CalculationType is the JSON tagged union calculation_type resolves to.
// Exactly one of the *Spec fields is populated.
type CalculationType struct {
	Expression  *ExpressionSpec
	Aggregation *AggregationSpec
	TimeSeries  *TimeSeriesSpec
	Energy      *EnergySpec
}

// wireCalculationType is the on-disk shape: a "type" discriminator plus
// the fields of whichever spec it names, flattened into one object
// rather than nested under a second key.
type wireCalculationType struct {
	Type string `json:"type"`

	Formula   string            `json:"formula,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`

	Operation  string             `json:"operation,omitempty"`
	SourceKeys []string           `json:"source_keys,omitempty"`
	Percentile float64            `json:"percentile,omitempty"`
	Weights    []float64          `json:"weights,omitempty"`
	TimeWindowSeconds *int64      `json:"time_window_seconds,omitempty"`

	SourceKey  string             `json:"source_key,omitempty"`
	Parameters map[string]float64 `json:"parameters,omitempty"`

	Inputs map[string]string `json:"inputs,omitempty"`
}

func (c CalculationType) MarshalJSON() ([]byte, error) {
	var w wireCalculationType
	switch {
	case c.Expression != nil:
		w.Type = "Expression"
		w.Formula = c.Expression.Formula
		w.Variables = c.Expression.Variables
	case c.Aggregation != nil:
		w.Type = "Aggregation"
		w.Operation = string(c.Aggregation.Operation)
		w.SourceKeys = c.Aggregation.SourceKeys
		w.Percentile = c.Aggregation.Percentile
		w.Weights = c.Aggregation.Weights
		if c.Aggregation.TimeWindow != nil {
			secs := int64(c.Aggregation.TimeWindow.Seconds())
			w.TimeWindowSeconds = &secs
		}
	case c.TimeSeries != nil:
		w.Type = "TimeSeries"
		w.Operation = string(c.TimeSeries.Operation)
		w.SourceKey = c.TimeSeries.SourceKey
		w.Parameters = c.TimeSeries.Parameters
	case c.Energy != nil:
		w.Type = "Energy"
		w.Operation = string(c.Energy.Operation)
		w.Inputs = c.Energy.Inputs
	default:
		return nil, fmt.Errorf("calc: calculation_type has no populated spec")
	}
	return json.Marshal(w)
}

func (c *CalculationType) UnmarshalJSON(data []byte) error {
	var w wireCalculationType
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "Expression":
		c.Expression = &ExpressionSpec{Formula: w.Formula, Variables: w.Variables}
	case "Aggregation":
		spec := &AggregationSpec{
			Operation:  AggregationOperation(w.Operation),
			SourceKeys: w.SourceKeys,
			Percentile: w.Percentile,
			Weights:    w.Weights,
		}
		if w.TimeWindowSeconds != nil {
			d := time.Duration(*w.TimeWindowSeconds) * time.Second
			spec.TimeWindow = &d
		}
		c.Aggregation = spec
	case "TimeSeries":
		c.TimeSeries = &TimeSeriesSpec{
			Operation:  TimeSeriesOperation(w.Operation),
			SourceKey:  w.SourceKey,
			Parameters: w.Parameters,
		}
	case "Energy":
		c.Energy = &EnergySpec{Operation: EnergyOperation(w.Operation), Inputs: w.Inputs}
	default:
		return fmt.Errorf("calc: unknown calculation_type %q", w.Type)
	}
	return nil
}

// CalculationDefinition is one registered, possibly-disabled calculation.
type CalculationDefinition struct {
	ID          string
	Name        string
	Description string
	Type        CalculationType
	OutputInst  string
	OutputType  string
	OutputID    string
	Enabled     bool
	Trigger     TriggerKind
}

// OutputKey is the mechanical output_key derivation §4.3 specifies.
func (d CalculationDefinition) OutputKey() string {
	return "inst:" + d.OutputInst + ":" + d.OutputType + ":" + d.OutputID
}

// CalculationResult is what every execute_calculation call returns.
type CalculationResult struct {
	ID      string
	Status  Status
	Value   any
	Quality Quality
	Error   string
}
