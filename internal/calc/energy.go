package calc

import "fmt"

// PowerBalanceInputs holds the four terms of the site power balance, in kW.
type PowerBalanceInputs struct {
	PV      float64
	Battery float64
	Load    float64
	Grid    float64
}

// PowerBalanceResult reports the balance and whether it is within tolerance.
type PowerBalanceResult struct {
	Balance    float64
	IsBalanced bool
}

const powerBalanceTolerance = 0.001

// PowerBalance computes pv + battery - load - grid and flags whether the
// result is within the tolerance band of zero.
func PowerBalance(in PowerBalanceInputs) PowerBalanceResult {
	bal := in.PV + in.Battery - in.Load - in.Grid
	abs := bal
	if abs < 0 {
		abs = -abs
	}
	return PowerBalanceResult{Balance: bal, IsBalanced: abs < powerBalanceTolerance}
}

// StateOfCharge performs Coulomb counting: soc_new = soc_prev + (current_a *
// dt_hours) / capacity_ah * 100, clamped to [0, 100].
func StateOfCharge(socPrev, currentA, dtHours, capacityAh float64) (float64, error) {
	if capacityAh <= 0 {
		return 0, fmt.Errorf("calc: state of charge requires a positive battery capacity")
	}
	soc := socPrev + (currentA*dtHours)/capacityAh*100
	if soc < 0 {
		soc = 0
	}
	if soc > 100 {
		soc = 100
	}
	return soc, nil
}

// EnergyEfficiencyResult reports percentage efficiency and absolute losses.
type EnergyEfficiencyResult struct {
	EfficiencyPct float64
	Losses        float64
}

// Efficiency computes min(output/input*100, 100) when input > 0,
// otherwise 0. Losses is always input - output.
func Efficiency(input, output float64) EnergyEfficiencyResult {
	var pct float64
	if input > 0 {
		pct = output / input * 100
		if pct > 100 {
			pct = 100
		}
	}
	return EnergyEfficiencyResult{EfficiencyPct: pct, Losses: input - output}
}

// LoadForecastResult is a heuristic point forecast with a fixed confidence,
// matching the distilled spec's "no ML model, heuristic only" guidance.
type LoadForecastResult struct {
	ForecastKW float64
	Confidence float64
}

// LoadForecast projects the next value as the average of the recent history,
// weighted towards the most recent sample.
func LoadForecast(recent []float64) (LoadForecastResult, error) {
	if len(recent) == 0 {
		return LoadForecastResult{}, fmt.Errorf("calc: load forecast requires at least 1 historical sample")
	}
	var sum float64
	for _, v := range recent {
		sum += v
	}
	avg := sum / float64(len(recent))
	last := recent[len(recent)-1]
	forecast := 0.7*last + 0.3*avg
	return LoadForecastResult{ForecastKW: forecast, Confidence: 0.75}, nil
}

// OptimalDispatchResult is the recommended battery setpoint (positive =
// discharge, negative = charge) for the given load/PV/price snapshot.
type OptimalDispatchResult struct {
	BatterySetpointKW float64
	Reason            string
}

// OptimalDispatch is a greedy heuristic: cover the net load (load - pv) from
// the battery up to its power limit, charge from surplus PV otherwise.
func OptimalDispatch(loadKW, pvKW, batteryLimitKW float64) OptimalDispatchResult {
	net := loadKW - pvKW
	switch {
	case net > 0:
		setpoint := net
		if setpoint > batteryLimitKW {
			setpoint = batteryLimitKW
		}
		return OptimalDispatchResult{BatterySetpointKW: setpoint, Reason: "discharge to cover net load"}
	case net < 0:
		setpoint := net
		if -setpoint > batteryLimitKW {
			setpoint = -batteryLimitKW
		}
		return OptimalDispatchResult{BatterySetpointKW: setpoint, Reason: "charge from PV surplus"}
	default:
		return OptimalDispatchResult{BatterySetpointKW: 0, Reason: "load and generation balanced"}
	}
}

// CostOptimizationResult reports the cheapest-price index in a tariff window
// and the estimated saving against the window's average price.
type CostOptimizationResult struct {
	CheapestIndex int
	EstimatedSavingPerKWh float64
}

// CostOptimization picks the lowest-price slot in a tariff series, useful for
// scheduling shiftable/dispatchable load.
func CostOptimization(pricesPerKWh []float64) (CostOptimizationResult, error) {
	if len(pricesPerKWh) == 0 {
		return CostOptimizationResult{}, fmt.Errorf("calc: cost optimization requires at least 1 tariff sample")
	}
	minIdx := 0
	var sum float64
	for i, p := range pricesPerKWh {
		sum += p
		if p < pricesPerKWh[minIdx] {
			minIdx = i
		}
	}
	avg := sum / float64(len(pricesPerKWh))
	return CostOptimizationResult{
		CheapestIndex:         minIdx,
		EstimatedSavingPerKWh: avg - pricesPerKWh[minIdx],
	}, nil
}
