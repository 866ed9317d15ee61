package transform

import (
	"math"
	"testing"
)

func TestLinearRoundTrip(t *testing.T) {
	cases := []struct {
		value, scale, offset float64
	}{
		{10.0, 0.1, 0},
		{-42.5, 2.0, 5.0},
		{0, 1.0, 0},
		{100, 0.5, -10},
	}
	for _, c := range cases {
		raw, err := Linear(c.value, c.scale, c.offset, SystemToDevice)
		if err != nil {
			t.Fatalf("system-to-device: %v", err)
		}
		back, err := Linear(raw, c.scale, c.offset, DeviceToSystem)
		if err != nil {
			t.Fatalf("device-to-system: %v", err)
		}
		if math.Abs(back-c.value) > 1e-9 {
			t.Errorf("round trip mismatch: want %v got %v", c.value, back)
		}
	}
}

func TestLinearZeroScaleRejected(t *testing.T) {
	if _, err := Linear(5, 0, 0, SystemToDevice); err == nil {
		t.Fatal("expected error for zero scale on system-to-device")
	}
}

func TestLinearDeviceToSystem(t *testing.T) {
	got, err := Linear(10, 2.0, 5.0, DeviceToSystem)
	if err != nil {
		t.Fatal(err)
	}
	if got != 25.0 {
		t.Errorf("want 25.0 got %v", got)
	}
}
