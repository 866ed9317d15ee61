package expr

import "testing"

func TestEvalArithmetic(t *testing.T) {
	cases := []struct {
		formula string
		want    float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"2 ^ 3 ^ 2", 512}, // right-associative
		{"-2 ^ 2", -4},     // unary binds looser than power
		{"10 % 3", 1},
		{"sqrt(16)", 4},
		{"min(3, 5) + max(3, 5)", 8},
		{"abs(-5)", 5},
	}
	for _, c := range cases {
		got, err := Eval(c.formula, nil)
		if err != nil {
			t.Fatalf("%q: %v", c.formula, err)
		}
		if got != c.want {
			t.Errorf("%q: want %v got %v", c.formula, c.want, got)
		}
	}
}

func TestEvalVariables(t *testing.T) {
	got, err := Eval("a + b * 2", map[string]float64{"a": 1, "b": 3})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != 7 {
		t.Errorf("want 7 got %v", got)
	}
}

func TestEvalUnknownVariable(t *testing.T) {
	if _, err := Eval("a + 1", nil); err == nil {
		t.Error("expected error for unknown variable")
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	if _, err := Eval("1 / 0", nil); err == nil {
		t.Error("expected division-by-zero error")
	}
}

func TestEvalPrecedenceOrder(t *testing.T) {
	// power > unary minus > * / > + -
	got, err := Eval("2 + 3 * 2 ^ 2", nil)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != 14 {
		t.Errorf("want 14 got %v", got)
	}
}
