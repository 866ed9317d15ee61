package calc

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/fieldwave/comsrv/internal/bus"
	"github.com/fieldwave/comsrv/internal/calc/agg"
	"github.com/fieldwave/comsrv/internal/calc/expr"
)

// HistoryStore is the external, out-of-scope secondary store TimeSeries
// calculations read from: a sorted-by-timestamp slice over
// [now-window_seconds*1000, now]. Nothing in this module implements it;
// callers wire in whatever history backend they run.
type HistoryStore interface {
	Range(ctx context.Context, sourceKey string, windowSeconds int64) ([]Sample, error)
}

// Engine ties the Registry to the bus and an optional history store, and
// is the single execute_calculation entry point.
type Engine struct {
	Registry *Registry
	Bus      bus.KvBus
	History  HistoryStore
}

func NewEngine(reg *Registry, b bus.KvBus, h HistoryStore) *Engine {
	return &Engine{Registry: reg, Bus: b, History: h}
}

// ExecuteCalculation is the single evaluator entry. Unknown ids and
// disabled definitions are a hard error; any other failure is folded into
// the returned CalculationResult (status Error, quality Bad) rather than
// returned as a Go error, per the result contract.
func (e *Engine) ExecuteCalculation(ctx context.Context, id string) (CalculationResult, error) {
	def, ok := e.Registry.Get(id)
	if !ok {
		return CalculationResult{}, fmt.Errorf("calc: unknown calculation %q", id)
	}
	if !def.Enabled {
		return CalculationResult{}, fmt.Errorf("calc: calculation %q is disabled", id)
	}

	value, err := e.dispatch(ctx, *def)
	if err != nil {
		return CalculationResult{ID: id, Status: StatusError, Value: nil, Quality: QualityBad, Error: err.Error()}, nil
	}

	if e.Bus != nil {
		if setErr := e.Bus.Set(ctx, def.OutputKey(), toString(value)); setErr != nil {
			return CalculationResult{ID: id, Status: StatusError, Value: nil, Quality: QualityBad, Error: setErr.Error()}, nil
		}
	}
	return CalculationResult{ID: id, Status: StatusOK, Value: value, Quality: QualityGood}, nil
}

func (e *Engine) dispatch(ctx context.Context, def CalculationDefinition) (any, error) {
	switch {
	case def.Type.Expression != nil:
		return e.evalExpression(ctx, *def.Type.Expression)
	case def.Type.Aggregation != nil:
		return e.evalAggregation(ctx, *def.Type.Aggregation)
	case def.Type.TimeSeries != nil:
		return e.evalTimeSeries(ctx, *def.Type.TimeSeries)
	case def.Type.Energy != nil:
		return e.evalEnergy(ctx, *def.Type.Energy)
	default:
		return nil, fmt.Errorf("calc: calculation %q has no populated calculation_type", def.ID)
	}
}

// readNumeric reads key from the bus and parses it as a float; it returns
// ok=false on a missing key or a non-numeric value, never an error, so
// callers can substitute a default per §4.3.
func (e *Engine) readNumeric(ctx context.Context, key string) (float64, bool) {
	if e.Bus == nil {
		return 0, false
	}
	s, found, err := e.Bus.Get(ctx, key)
	if err != nil || !found {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (e *Engine) evalExpression(ctx context.Context, spec ExpressionSpec) (any, error) {
	vars := make(map[string]float64, len(spec.Variables))
	for name, key := range spec.Variables {
		v, ok := e.readNumeric(ctx, key)
		if !ok {
			v = 0.0
		}
		vars[name] = v
	}
	return expr.Eval(spec.Formula, vars)
}

func (e *Engine) evalAggregation(ctx context.Context, spec AggregationSpec) (any, error) {
	var values []float64
	for _, key := range spec.SourceKeys {
		if v, ok := e.readNumeric(ctx, key); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("calc: aggregation %q: empty input set", spec.Operation)
	}
	switch spec.Operation {
	case AggPercentile:
		return agg.Percentile(values, spec.Percentile)
	case AggWeightedAverage:
		return agg.WeightedAverage(values, spec.Weights)
	default:
		return agg.Apply(string(spec.Operation), values)
	}
}

func (e *Engine) evalTimeSeries(ctx context.Context, spec TimeSeriesSpec) (any, error) {
	if e.History == nil {
		return nil, fmt.Errorf("calc: time series %q: no history store configured", spec.Operation)
	}
	windowSeconds := int64(spec.Parameters["window_seconds"])
	samples, err := e.History.Range(ctx, spec.SourceKey, windowSeconds)
	if err != nil {
		return nil, err
	}
	switch spec.Operation {
	case TSMovingAverage:
		windowSize := int(spec.Parameters["window_size"])
		return MovingAverage(samples, windowSize), nil
	case TSRateOfChange:
		return RateOfChange(samples)
	default:
		return nil, fmt.Errorf("calc: time series operation %q not implemented", spec.Operation)
	}
}

func (e *Engine) evalEnergy(ctx context.Context, spec EnergySpec) (any, error) {
	read := func(name string) (float64, bool) {
		key, ok := spec.Inputs[name]
		if !ok {
			return 0, false
		}
		return e.readNumeric(ctx, key)
	}

	switch spec.Operation {
	case EnergyPowerBalance:
		pv, _ := read("pv")
		battery, _ := read("battery")
		load, _ := read("load")
		grid, _ := read("grid")
		result := PowerBalance(PowerBalanceInputs{PV: pv, Battery: battery, Load: load, Grid: grid})
		return map[string]any{
			"power_balance": result.Balance,
			"is_balanced":   result.IsBalanced,
			"components":    map[string]float64{"pv": pv, "battery": battery, "load": load, "grid": grid},
		}, nil

	case EnergyStateOfCharge:
		prevSOC, _ := read("prev_soc")
		current, _ := read("current")
		dtSeconds, _ := read("dt")
		capacity, ok := read("capacity")
		if !ok {
			return nil, fmt.Errorf("calc: state of charge: missing capacity input")
		}
		soc, err := StateOfCharge(prevSOC, current, dtSeconds/3600, capacity)
		if err != nil {
			return nil, err
		}
		energyStored := capacity * soc / 100
		power := current
		if voltage, ok := read("voltage"); ok {
			power = current * voltage
		}
		return map[string]any{
			"soc":           soc,
			"soc_change":    soc - prevSOC,
			"energy_stored": energyStored,
			"power":         power,
		}, nil

	case EnergyEfficiency:
		input, _ := read("input")
		output, _ := read("output")
		result := Efficiency(input, output)
		return map[string]any{
			"efficiency": result.EfficiencyPct,
			"losses":     result.Losses,
		}, nil

	case EnergyLoadForecast:
		recent := sortedInputValues(ctx, e, spec.Inputs)
		if len(recent) == 0 {
			return nil, fmt.Errorf("calc: load forecast: no readable inputs")
		}
		result, err := LoadForecast(recent)
		if err != nil {
			return nil, err
		}
		peakProbability := 0.0
		if result.ForecastKW > Max(recent) {
			peakProbability = 0.6
		}
		return map[string]any{
			"forecast_load":   result.ForecastKW,
			"confidence":      result.Confidence,
			"peak_probability": peakProbability,
		}, nil

	case EnergyOptimalDispatch:
		load, _ := read("load")
		pv, _ := read("pv")
		limit, ok := read("battery_limit")
		if !ok {
			limit = load
		}
		result := OptimalDispatch(load, pv, limit)
		return map[string]any{
			"battery_setpoint": result.BatterySetpointKW,
			"reason":           result.Reason,
		}, nil

	case EnergyCostOptimization:
		prices := sortedInputValues(ctx, e, spec.Inputs)
		if len(prices) == 0 {
			return nil, fmt.Errorf("calc: cost optimization: no readable inputs")
		}
		result, err := CostOptimization(prices)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"cheapest_index":    result.CheapestIndex,
			"estimated_saving":  result.EstimatedSavingPerKWh,
		}, nil

	default:
		return nil, fmt.Errorf("calc: unknown energy operation %q", spec.Operation)
	}
}

// Max returns the largest element of values; it panics on an empty slice,
// matching its only caller's already-checked-non-empty precondition.
func Max(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// sortedInputValues reads every input in spec.Inputs, keyed by name, in
// deterministic name order, skipping unreadable entries. It is how
// single-sample Energy inputs (keyed by name, not a single list) are
// turned into the ordered history slices LoadForecast/CostOptimization
// expect.
func sortedInputValues(ctx context.Context, e *Engine, inputs map[string]string) []float64 {
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	var values []float64
	for _, name := range names {
		if v, ok := e.readNumeric(ctx, inputs[name]); ok {
			values = append(values, v)
		}
	}
	return values
}

func toString(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []float64:
		return formatFloatSlice(t)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		return formatMap(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatFloatSlice(values []float64) string {
	s := "["
	for i, v := range values {
		if i > 0 {
			s += ","
		}
		s += strconv.FormatFloat(v, 'f', -1, 64)
	}
	return s + "]"
}

func formatMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += ","
		}
		s += k + ":" + toString(m[k])
	}
	return s + "}"
}
