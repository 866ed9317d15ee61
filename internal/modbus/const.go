package modbus

import "strings"

// Function codes, big-endian on the wire, as specified for the PDU
// builder/parser.
const (
	FuncReadCoils              = uint8(1)
	FuncReadDiscreteInputs     = uint8(2)
	FuncReadHoldingRegisters   = uint8(3)
	FuncReadInputRegisters     = uint8(4)
	FuncWriteSingleCoil        = uint8(5)
	FuncWriteSingleRegister    = uint8(6)
	FuncWriteMultipleCoils     = uint8(15)
	FuncWriteMultipleRegisters = uint8(16)

	exceptionBit = uint8(0x80)
)

// Maximum quantities per read request.
const (
	MaxCoilsInReadResponse     = uint16(2000)
	MaxRegistersInReadResponse = uint16(125)
)

// ProtocolType is the closed set of transport tags. Reserved names are
// recognized for config validation purposes but not implemented by this
// engine (see Virtual).
type ProtocolType int

const (
	ProtocolUnknown ProtocolType = iota
	ModbusTCP
	ModbusRTU
	// Reserved, recognized-but-not-implemented protocol tags.
	Iec104
	Can
	Virtual
	Dio
	Iec61850
)

func (p ProtocolType) String() string {
	switch p {
	case ModbusTCP:
		return "ModbusTcp"
	case ModbusRTU:
		return "ModbusRtu"
	case Iec104:
		return "Iec104"
	case Can:
		return "Can"
	case Virtual:
		return "Virtual"
	case Dio:
		return "Dio"
	case Iec61850:
		return "Iec61850"
	default:
		return "Unknown"
	}
}

// ParseProtocolType is case-insensitive; an unknown string reports ok=false
// so the caller can surface ProtocolNotSupported.
func ParseProtocolType(s string) (ProtocolType, bool) {
	switch strings.ToLower(s) {
	case "modbustcp", "modbus_tcp", "modbus-tcp":
		return ModbusTCP, true
	case "modbusrtu", "modbus_rtu", "modbus-rtu":
		return ModbusRTU, true
	case "iec104":
		return Iec104, true
	case "can":
		return Can, true
	case "virtual":
		return Virtual, true
	case "dio":
		return Dio, true
	case "iec61850":
		return Iec61850, true
	default:
		return ProtocolUnknown, false
	}
}

// ConnectionState is the per-channel state machine described in the
// component design. Uninitialized -> Initializing -> {Connecting ->
// Connected} | {Connecting -> Failed}; Connected -> Closed; Failed ->
// Connecting on retry. No other transitions are permitted.
type ConnectionState int

const (
	Uninitialized ConnectionState = iota
	Initializing
	Connecting
	Connected
	Failed
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Failed:
		return "Failed"
	case Closed:
		return "Closed"
	default:
		return "Uninitialized"
	}
}
