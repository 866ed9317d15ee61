package calc

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCalculationTypeExpressionRoundTrip(t *testing.T) {
	ct := CalculationType{Expression: &ExpressionSpec{Formula: "a+b", Variables: map[string]string{"a": "k1"}}}
	b, err := json.Marshal(ct)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got CalculationType
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Expression == nil || got.Expression.Formula != "a+b" {
		t.Errorf("got %+v", got.Expression)
	}
}

func TestCalculationTypeAggregationRoundTrip(t *testing.T) {
	window := 30 * time.Second
	ct := CalculationType{Aggregation: &AggregationSpec{Operation: AggAverage, SourceKeys: []string{"x", "y"}, TimeWindow: &window}}
	b, err := json.Marshal(ct)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got CalculationType
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Aggregation == nil || got.Aggregation.Operation != AggAverage || got.Aggregation.TimeWindow == nil || *got.Aggregation.TimeWindow != window {
		t.Errorf("got %+v", got.Aggregation)
	}
}

func TestCalculationTypeUnknownDiscriminator(t *testing.T) {
	var ct CalculationType
	if err := json.Unmarshal([]byte(`{"type":"Bogus"}`), &ct); err == nil {
		t.Error("expected error for unknown discriminator")
	}
}
