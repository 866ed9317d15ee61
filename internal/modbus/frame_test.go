package modbus

import (
	"bytes"
	"testing"
)

func TestFrameParityTCP(t *testing.T) {
	c := NewCodec(ModbusTCP)
	pdu := []byte{FuncReadHoldingRegisters, 0x00, 0x00, 0x00, 0x03}
	frame, tid := c.BuildFrame(1, pdu)

	unitID, gotPDU, matched, err := c.ParseFrame(frame, tid)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !matched {
		t.Fatal("expected transaction id to match")
	}
	if unitID != 1 {
		t.Errorf("want unit id 1 got %d", unitID)
	}
	if !bytes.Equal(gotPDU, pdu) {
		t.Errorf("want pdu %v got %v", pdu, gotPDU)
	}
}

func TestFrameParityRTU(t *testing.T) {
	c := NewCodec(ModbusRTU)
	pdu := []byte{FuncReadHoldingRegisters, 0x00, 0x00, 0x00, 0x03}
	frame, _ := c.BuildFrame(1, pdu)

	unitID, gotPDU, _, err := c.ParseFrame(frame, 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if unitID != 1 {
		t.Errorf("want unit id 1 got %d", unitID)
	}
	if !bytes.Equal(gotPDU, pdu) {
		t.Errorf("want pdu %v got %v", pdu, gotPDU)
	}
}

func TestFrameRTUBadCRC(t *testing.T) {
	c := NewCodec(ModbusRTU)
	pdu := []byte{FuncReadHoldingRegisters, 0x00, 0x00, 0x00, 0x03}
	frame, _ := c.BuildFrame(1, pdu)
	frame[len(frame)-1] ^= 0xFF

	if _, _, _, err := c.ParseFrame(frame, 0); err == nil {
		t.Fatal("expected crc mismatch error")
	}
}

// TestScenarioS1Frame verifies the exact byte sequence from end-to-end
// scenario S1: Modbus TCP, single FC03, three consecutive registers.
func TestScenarioS1Frame(t *testing.T) {
	c := NewCodec(ModbusTCP)
	pdu := []byte{FuncReadHoldingRegisters, 0x00, 0x00, 0x00, 0x03}
	frame, tid := c.BuildFrame(1, pdu)
	if tid != 1 {
		t.Fatalf("want first transaction id 1, got %d", tid)
	}
	want := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x01, 0x03, 0x00, 0x00, 0x00, 0x03}
	if !bytes.Equal(frame, want) {
		t.Errorf("want %v got %v", want, frame)
	}
}

func TestExceptionDetection(t *testing.T) {
	isExc, fc, code := IsException([]byte{FuncReadHoldingRegisters | 0x80, 0x02})
	if !isExc || fc != FuncReadHoldingRegisters || code != 0x02 {
		t.Errorf("unexpected exception decode: %v %v %v", isExc, fc, code)
	}
	isExc2, _, _ := IsException([]byte{FuncReadHoldingRegisters, 0x06, 0x00, 0x0A})
	if isExc2 {
		t.Error("non-exception pdu flagged as exception")
	}
}
