package modbus

import (
	"encoding/binary"
	"fmt"

	"github.com/fieldwave/comsrv/internal/comerr"
)

// BuildReadRequest builds the 5-byte read-request PDU: [fc, addr_hi,
// addr_lo, qty_hi, qty_lo]. Enforces the max-quantity bounds per function
// code.
func BuildReadRequest(fc uint8, startAddr, quantity uint16) ([]byte, error) {
	switch fc {
	case FuncReadCoils, FuncReadDiscreteInputs:
		if quantity == 0 || quantity > MaxCoilsInReadResponse {
			return nil, &comerr.InvalidParameter{Msg: fmt.Sprintf("coil quantity %d out of range", quantity)}
		}
	case FuncReadHoldingRegisters, FuncReadInputRegisters:
		if quantity == 0 || quantity > MaxRegistersInReadResponse {
			return nil, &comerr.InvalidParameter{Msg: fmt.Sprintf("register quantity %d out of range", quantity)}
		}
	default:
		return nil, &comerr.ProtocolNotSupported{Name: fmt.Sprintf("function code %d", fc)}
	}

	pdu := make([]byte, 5)
	pdu[0] = fc
	binary.BigEndian.PutUint16(pdu[1:3], startAddr)
	binary.BigEndian.PutUint16(pdu[3:5], quantity)
	return pdu, nil
}

// ParseReadCoilsResponse returns the raw byte sequence carrying one
// coil-bit per wire-bit, per function codes 01/02.
func ParseReadCoilsResponse(pdu []byte) (bytes []byte, err error) {
	if len(pdu) < 2 {
		return nil, &comerr.ProtocolError{Msg: "short coil response"}
	}
	byteCount := int(pdu[1])
	available := len(pdu) - 2
	if byteCount > available {
		// Graceful truncation: return as many complete bytes as present.
		byteCount = available
	}
	return pdu[2 : 2+byteCount], nil
}

// ParseReadRegistersResponse returns the sequence of 16-bit big-endian
// registers carried by an FC03/FC04 response, tolerating a response whose
// declared byte_count exceeds what's actually present (graceful
// truncation: only complete register pairs are returned).
func ParseReadRegistersResponse(pdu []byte) (registers []uint16, err error) {
	if len(pdu) < 2 {
		return nil, &comerr.ProtocolError{Msg: "short register response"}
	}
	byteCount := int(pdu[1])
	available := len(pdu) - 2
	if byteCount > available {
		byteCount = available
	}
	n := byteCount / 2
	registers = make([]uint16, n)
	for i := 0; i < n; i++ {
		registers[i] = binary.BigEndian.Uint16(pdu[2+2*i : 4+2*i])
	}
	return registers, nil
}

// BuildWriteSingleCoil builds FC05.
func BuildWriteSingleCoil(addr uint16, on bool) []byte {
	pdu := make([]byte, 5)
	pdu[0] = FuncWriteSingleCoil
	binary.BigEndian.PutUint16(pdu[1:3], addr)
	if on {
		pdu[3], pdu[4] = 0xFF, 0x00
	}
	return pdu
}

// BuildWriteSingleRegister builds FC06.
func BuildWriteSingleRegister(addr, value uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = FuncWriteSingleRegister
	binary.BigEndian.PutUint16(pdu[1:3], addr)
	binary.BigEndian.PutUint16(pdu[3:5], value)
	return pdu
}

// BuildWriteMultipleCoils builds FC15.
func BuildWriteMultipleCoils(addr uint16, bits []bool) []byte {
	quantity := uint16(len(bits))
	byteCount := (len(bits) + 7) / 8
	pdu := make([]byte, 6+byteCount)
	pdu[0] = FuncWriteMultipleCoils
	binary.BigEndian.PutUint16(pdu[1:3], addr)
	binary.BigEndian.PutUint16(pdu[3:5], quantity)
	pdu[5] = byte(byteCount)
	for i, b := range bits {
		if b {
			pdu[6+i/8] |= 1 << uint(i%8)
		}
	}
	return pdu
}

// BuildWriteMultipleRegisters builds FC16 for a contiguous block of
// registers starting at addr.
func BuildWriteMultipleRegisters(addr uint16, values []uint16) []byte {
	pdu := make([]byte, 6+2*len(values))
	pdu[0] = FuncWriteMultipleRegisters
	binary.BigEndian.PutUint16(pdu[1:3], addr)
	binary.BigEndian.PutUint16(pdu[3:5], uint16(len(values)))
	pdu[5] = byte(2 * len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(pdu[6+2*i:8+2*i], v)
	}
	return pdu
}

// ParseWriteConfirmation parses the echo response shared by FC05/06/15/16
// into (address, quantityOrValue) for the caller to compare against the
// request for acknowledgement.
func ParseWriteConfirmation(pdu []byte) (addr uint16, quantityOrValue uint16, err error) {
	if len(pdu) < 5 {
		return 0, 0, &comerr.ProtocolError{Msg: "short write confirmation"}
	}
	addr = binary.BigEndian.Uint16(pdu[1:3])
	quantityOrValue = binary.BigEndian.Uint16(pdu[3:5])
	return addr, quantityOrValue, nil
}
