package modbus

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/fieldwave/comsrv/internal/comerr"
)

// Codec builds and parses wire frames for one channel. It owns the
// monotonic transaction-id counter so retries never re-derive it at the
// call site (see design notes on frame codec reentry).
type Codec struct {
	protocol ProtocolType
	txID     atomic.Uint32
}

func NewCodec(protocol ProtocolType) *Codec {
	return &Codec{protocol: protocol}
}

// nextTransactionID returns the next monotonically increasing 16-bit
// transaction id, wrapping at 0xFFFF back to 1 (0 is avoided only as a
// matter of taste, not a protocol requirement).
func (c *Codec) nextTransactionID() uint16 {
	v := uint16(c.txID.Add(1))
	if v == 0 {
		v = uint16(c.txID.Add(1))
	}
	return v
}

// BuildFrame wraps a PDU for the wire. For TCP it prepends a 7-byte MBAP
// header (transaction id, protocol id = 0, length, unit id) returning the
// transaction id used. For RTU it prepends the unit id and appends a
// CRC-16/Modbus trailer.
func (c *Codec) BuildFrame(unitID uint8, pdu []byte) (frame []byte, transactionID uint16) {
	if c.protocol == ModbusRTU {
		frame = make([]byte, 0, 1+len(pdu)+2)
		frame = append(frame, unitID)
		frame = append(frame, pdu...)
		crc := CRC16(frame)
		frame = append(frame, byte(crc), byte(crc>>8))
		return frame, 0
	}

	tid := c.nextTransactionID()
	length := uint16(1 + len(pdu))
	frame = make([]byte, 7+len(pdu))
	binary.BigEndian.PutUint16(frame[0:2], tid)
	binary.BigEndian.PutUint16(frame[2:4], 0)
	binary.BigEndian.PutUint16(frame[4:6], length)
	frame[6] = unitID
	copy(frame[7:], pdu)
	return frame, tid
}

// ParseFrame extracts (unit id, pdu) from a raw response. For TCP it
// validates the MBAP length field; a transaction-id mismatch is reported
// via matchedTxID=false so the caller can decide whether to keep reading.
// For RTU it validates the CRC trailer.
func (c *Codec) ParseFrame(data []byte, expectTxID uint16) (unitID uint8, pdu []byte, matchedTxID bool, err error) {
	if c.protocol == ModbusRTU {
		if len(data) < 5 {
			return 0, nil, true, &comerr.ProtocolError{Msg: "rtu frame too short"}
		}
		body := data[:len(data)-2]
		gotCRC := uint16(data[len(data)-2]) | uint16(data[len(data)-1])<<8
		if CRC16(body) != gotCRC {
			return 0, nil, true, &comerr.ProtocolError{Msg: "rtu crc mismatch"}
		}
		return data[0], data[1:len(data)-2], true, nil
	}

	if len(data) < 8 {
		return 0, nil, true, &comerr.ProtocolError{Msg: "tcp frame too short"}
	}
	tid := binary.BigEndian.Uint16(data[0:2])
	protoID := binary.BigEndian.Uint16(data[2:4])
	if protoID != 0 {
		return 0, nil, true, &comerr.ProtocolError{Msg: fmt.Sprintf("unexpected protocol id %d", protoID)}
	}
	length := binary.BigEndian.Uint16(data[4:6])
	if int(length)+6 != len(data) {
		return 0, nil, true, &comerr.ProtocolError{Msg: "mbap length field mismatch"}
	}
	unitID = data[6]
	pdu = data[7:]
	matchedTxID = tid == expectTxID
	return unitID, pdu, matchedTxID, nil
}

// IsException reports whether a PDU's function code carries the Modbus
// exception bit (function_code | 0x80), and if so returns the function it
// responds to and the exception code.
func IsException(pdu []byte) (isExc bool, respondingFunc uint8, code uint8) {
	if len(pdu) < 1 {
		return false, 0, 0
	}
	fc := pdu[0]
	if fc&exceptionBit == 0 {
		return false, fc, 0
	}
	exCode := uint8(0)
	if len(pdu) >= 2 {
		exCode = pdu[1]
	}
	return true, fc &^ exceptionBit, exCode
}

// CRC16 computes the standard Modbus RTU CRC (polynomial 0xA001,
// reflected, LSB-first).
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 == 1 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
