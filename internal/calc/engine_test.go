package calc

import (
	"context"
	"strconv"
	"sync"
	"testing"
)

type memBus struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemBus(seed map[string]float64) *memBus {
	b := &memBus{data: make(map[string]string)}
	for k, v := range seed {
		b.data[k] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return b
}

func (b *memBus) Get(ctx context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *memBus) Set(ctx context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *memBus) Close() error { return nil }

func TestExecuteCalculationUnknownID(t *testing.T) {
	e := NewEngine(NewRegistry(), newMemBus(nil), nil)
	if _, err := e.ExecuteCalculation(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestExecuteCalculationDisabled(t *testing.T) {
	reg := NewRegistry()
	reg.Register(CalculationDefinition{ID: "x", Enabled: false})
	e := NewEngine(reg, newMemBus(nil), nil)
	if _, err := e.ExecuteCalculation(context.Background(), "x"); err == nil {
		t.Error("expected error for disabled definition")
	}
}

func TestExecuteCalculationExpressionWritesBus(t *testing.T) {
	b := newMemBus(map[string]float64{"temp.raw": 10})
	reg := NewRegistry()
	reg.Register(CalculationDefinition{
		ID:      "calc1",
		Enabled: true,
		Type: CalculationType{
			Expression: &ExpressionSpec{
				Formula:   "a * 2 + 1",
				Variables: map[string]string{"a": "temp.raw"},
			},
		},
		OutputInst: "site1",
		OutputType: "calc",
		OutputID:   "calc1",
	})
	e := NewEngine(reg, b, nil)
	result, err := e.ExecuteCalculation(context.Background(), "calc1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != StatusOK || result.Quality != QualityGood {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Value.(float64) != 21 {
		t.Errorf("want 21 got %v", result.Value)
	}
	got, ok, _ := b.Get(context.Background(), "inst:site1:calc:calc1")
	if !ok || got != "21" {
		t.Errorf("bus not written correctly: %v %v", got, ok)
	}
}

func TestExecuteCalculationExpressionMissingVariableDefaultsToZero(t *testing.T) {
	b := newMemBus(nil)
	reg := NewRegistry()
	reg.Register(CalculationDefinition{
		ID:      "calc2",
		Enabled: true,
		Type: CalculationType{
			Expression: &ExpressionSpec{Formula: "a + 5", Variables: map[string]string{"a": "missing.key"}},
		},
		OutputInst: "s", OutputType: "t", OutputID: "2",
	})
	e := NewEngine(reg, b, nil)
	result, err := e.ExecuteCalculation(context.Background(), "calc2")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Value.(float64) != 5 {
		t.Errorf("want 5 got %v", result.Value)
	}
}

func TestExecuteCalculationExpressionUnknownVariableFails(t *testing.T) {
	b := newMemBus(nil)
	reg := NewRegistry()
	reg.Register(CalculationDefinition{
		ID:      "calc3",
		Enabled: true,
		Type:    CalculationType{Expression: &ExpressionSpec{Formula: "b + 1", Variables: map[string]string{}}},
		OutputInst: "s", OutputType: "t", OutputID: "3",
	})
	e := NewEngine(reg, b, nil)
	result, err := e.ExecuteCalculation(context.Background(), "calc3")
	if err != nil {
		t.Fatalf("execute should not itself error: %v", err)
	}
	if result.Status != StatusError || result.Quality != QualityBad {
		t.Errorf("want status Error/quality Bad, got %+v", result)
	}
	if _, ok, _ := b.Get(context.Background(), "inst:s:t:3"); ok {
		t.Error("bus must not be written on failure")
	}
}

func TestExecuteCalculationAggregation(t *testing.T) {
	b := newMemBus(map[string]float64{"p1": 10, "p2": 20, "p3": 30})
	reg := NewRegistry()
	reg.Register(CalculationDefinition{
		ID:      "agg1",
		Enabled: true,
		Type: CalculationType{
			Aggregation: &AggregationSpec{Operation: AggAverage, SourceKeys: []string{"p1", "p2", "p3"}},
		},
		OutputInst: "s", OutputType: "t", OutputID: "4",
	})
	e := NewEngine(reg, b, nil)
	result, err := e.ExecuteCalculation(context.Background(), "agg1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Value.(float64) != 20 {
		t.Errorf("want 20 got %v", result.Value)
	}
}

func TestExecuteCalculationEnergyPowerBalance(t *testing.T) {
	b := newMemBus(map[string]float64{"pv.kw": 5, "batt.kw": 1, "load.kw": 6, "grid.kw": 0})
	reg := NewRegistry()
	reg.Register(CalculationDefinition{
		ID:      "pb1",
		Enabled: true,
		Type: CalculationType{
			Energy: &EnergySpec{
				Operation: EnergyPowerBalance,
				Inputs:    map[string]string{"pv": "pv.kw", "battery": "batt.kw", "load": "load.kw", "grid": "grid.kw"},
			},
		},
		OutputInst: "s", OutputType: "t", OutputID: "5",
	})
	e := NewEngine(reg, b, nil)
	result, err := e.ExecuteCalculation(context.Background(), "pb1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	m, ok := result.Value.(map[string]any)
	if !ok {
		t.Fatalf("want map result got %T", result.Value)
	}
	if m["is_balanced"] != true {
		t.Errorf("expected balanced, got %+v", m)
	}
}

type fakeHistory struct{ samples []Sample }

func (f fakeHistory) Range(ctx context.Context, sourceKey string, windowSeconds int64) ([]Sample, error) {
	return f.samples, nil
}

func TestExecuteCalculationTimeSeriesRateOfChange(t *testing.T) {
	reg := NewRegistry()
	reg.Register(CalculationDefinition{
		ID:      "ts1",
		Enabled: true,
		Type: CalculationType{
			TimeSeries: &TimeSeriesSpec{Operation: TSRateOfChange, SourceKey: "flow", Parameters: map[string]float64{"window_seconds": 60}},
		},
		OutputInst: "s", OutputType: "t", OutputID: "6",
	})
	hist := fakeHistory{samples: []Sample{{TimestampMS: 1000, Value: 10}, {TimestampMS: 2000, Value: 30}}}
	e := NewEngine(reg, newMemBus(nil), hist)
	result, err := e.ExecuteCalculation(context.Background(), "ts1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	rates, ok := result.Value.([]float64)
	if !ok || len(rates) != 1 || rates[0] != 0.02 {
		t.Errorf("want [0.02] got %v (%T)", result.Value, result.Value)
	}
}
