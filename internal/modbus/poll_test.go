package modbus

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"
)

// fakeModbusServer answers every request with a fixed set of holding
// register values, returning enough bytes to satisfy any quantity asked.
func fakeModbusServer(t *testing.T, regs map[uint16]uint16) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				for {
					hdr := make([]byte, 7)
					if _, err := readFull(c, hdr); err != nil {
						return
					}
					length := binary.BigEndian.Uint16(hdr[4:6])
					body := make([]byte, length-1)
					if _, err := readFull(c, body); err != nil {
						return
					}
					unitID := hdr[6]
					fc := body[0]
					addr := binary.BigEndian.Uint16(body[1:3])
					qty := binary.BigEndian.Uint16(body[3:5])

					pdu := []byte{fc, byte(qty * 2)}
					for i := uint16(0); i < qty; i++ {
						v := regs[addr+i]
						b := make([]byte, 2)
						binary.BigEndian.PutUint16(b, v)
						pdu = append(pdu, b...)
					}
					frame := make([]byte, 7+len(pdu))
					copy(frame[0:2], hdr[0:2])
					binary.BigEndian.PutUint16(frame[4:6], uint16(1+len(pdu)))
					frame[6] = unitID
					copy(frame[7:], pdu)
					c.Write(frame)
				}
			}(conn)
		}
	}()
	return ln
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// TestScenarioS1PollCycle exercises end-to-end scenario S1: a single
// slave with three consecutive uint16 registers decodes into a
// TelemetryBatch with matching values.
func TestScenarioS1PollCycle(t *testing.T) {
	ln := fakeModbusServer(t, map[uint16]uint16{0: 10, 1: 20, 2: 30})
	defer ln.Close()

	conn := NewConnection(TCPDialer(ln.Addr().String(), time.Second))
	if err := conn.ConnectWithRetry(context.Background(), 3, time.Second); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	points := []ModbusPoint{
		{PointID: "p1", SlaveID: 1, FunctionCode: FuncReadHoldingRegisters, RegisterAddress: 0, DataType: TypeUint16, RegisterCount: 1, Role: RoleTelemetry},
		{PointID: "p2", SlaveID: 1, FunctionCode: FuncReadHoldingRegisters, RegisterAddress: 1, DataType: TypeUint16, RegisterCount: 1, Role: RoleTelemetry},
		{PointID: "p3", SlaveID: 1, FunctionCode: FuncReadHoldingRegisters, RegisterAddress: 2, DataType: TypeUint16, RegisterCount: 1, Role: RoleTelemetry},
	}

	var captured TelemetryBatch
	cfg := DefaultPollConfig()
	loop := NewPollLoop(1, points, NewCodec(ModbusTCP), conn, cfg, nil, func(b TelemetryBatch) {
		captured = b
	})
	loop.tick(context.Background())

	if len(captured.Telemetry) != 3 {
		t.Fatalf("want 3 telemetry samples got %d: %+v", len(captured.Telemetry), captured.Telemetry)
	}
	want := map[string]float64{"p1": 10, "p2": 20, "p3": 30}
	for _, s := range captured.Telemetry {
		if s.Value != want[s.PointID] {
			t.Errorf("point %s: want %v got %v", s.PointID, want[s.PointID], s.Value)
		}
	}
}

func TestZeroCycleDetectionTripsDisconnect(t *testing.T) {
	conn := NewConnection(TCPDialer("127.0.0.1:1", 10*time.Millisecond))
	cfg := DefaultPollConfig()
	cfg.MaxZeroCycles = 2
	cfg.RetryAttempts = 1
	points := []ModbusPoint{{PointID: "p1", SlaveID: 1, FunctionCode: FuncReadHoldingRegisters, RegisterAddress: 0, DataType: TypeUint16, RegisterCount: 1, Role: RoleTelemetry}}
	loop := NewPollLoop(1, points, NewCodec(ModbusTCP), conn, cfg, nil, func(TelemetryBatch) {})

	loop.tick(context.Background())
	loop.tick(context.Background())

	if conn.State() != Failed {
		t.Errorf("want Failed after zero-cycle trip, got %v", conn.State())
	}
}
