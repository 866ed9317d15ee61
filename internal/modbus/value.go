package modbus

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Kind is the closed set of ProtocolValue variants.
type Kind int

const (
	KindNull Kind = iota
	KindFloat
	KindInteger
	KindBool
	KindString
)

// Value is the sum type described as ProtocolValue: Float(f64),
// Integer(i64), Bool, String, Null. Grounded on the teacher's
// Kind/Scalar pattern (internal/models/type.go), narrowed to the five
// variants the spec names and given a smaller surface since this value
// is short-lived (decoded once per tick, never persisted).
type Value struct {
	kind Kind
	f    float64
	i    int64
	b    bool
	s    string
}

func Null() Value                  { return Value{kind: KindNull} }
func FloatValue(f float64) Value   { return Value{kind: KindFloat, f: f} }
func IntegerValue(i int64) Value   { return Value{kind: KindInteger, i: i} }
func BoolValue(b bool) Value       { return Value{kind: KindBool, b: b} }
func StringValue(s string) Value   { return Value{kind: KindString, s: s} }

func (v Value) Kind() Kind { return v.kind }

// Float returns v as a float64, widening Integer/Bool as needed. Returns
// an error for String/Null.
func (v Value) Float() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInteger:
		return float64(v.i), nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value: cannot convert %v to float", v.kind)
	}
}

func (v Value) Int() (int64, error) {
	switch v.kind {
	case KindInteger:
		return v.i, nil
	case KindFloat:
		return int64(v.f), nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value: cannot convert %v to int", v.kind)
	}
}

func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("value: not a bool")
	}
	return v.b, nil
}

func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return fmt.Sprintf("%v", v.f)
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindString:
		return v.s
	default:
		return ""
	}
}

func (v Value) IsNull() bool { return v.kind == KindNull }

type wireValue struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	wv := wireValue{}
	switch v.kind {
	case KindFloat:
		wv.Kind = "float"
		wv.Value, _ = json.Marshal(v.f)
	case KindInteger:
		wv.Kind = "integer"
		wv.Value, _ = json.Marshal(v.i)
	case KindBool:
		wv.Kind = "bool"
		wv.Value, _ = json.Marshal(v.b)
	case KindString:
		wv.Kind = "string"
		wv.Value, _ = json.Marshal(v.s)
	default:
		wv.Kind = "null"
	}
	return json.Marshal(wv)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var wv wireValue
	if err := json.Unmarshal(data, &wv); err != nil {
		return err
	}
	switch wv.Kind {
	case "float":
		var f float64
		if err := json.Unmarshal(wv.Value, &f); err != nil {
			return err
		}
		*v = FloatValue(f)
	case "integer":
		var i int64
		if err := json.Unmarshal(wv.Value, &i); err != nil {
			return err
		}
		*v = IntegerValue(i)
	case "bool":
		var b bool
		if err := json.Unmarshal(wv.Value, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case "string":
		var s string
		if err := json.Unmarshal(wv.Value, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	default:
		*v = Null()
	}
	return nil
}

// Value/Scan make ProtocolValue persistable as an opaque JSON column,
// matching the teacher's Scalar type.
func (v Value) Value() (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *Value) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = Null()
		return nil
	case []byte:
		return json.Unmarshal(s, v)
	case string:
		return json.Unmarshal([]byte(s), v)
	default:
		return fmt.Errorf("value: unsupported scan type %T", src)
	}
}
