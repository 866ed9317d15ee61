package modbus

import (
	"encoding/binary"
	"math"

	"github.com/fieldwave/comsrv/internal/comerr"
)

// ByteOrder names the four 32-bit register-pair orderings a point can
// declare. Grounded on the teacher's pack-mate aldas-go-modbus-client's
// marshalbytes.go, which carries the same ABCD/DCBA/BADC/CDAB set for
// float32/uint32/int32 registers.
type ByteOrder int

const (
	OrderABCD ByteOrder = iota
	OrderDCBA
	OrderBADC
	OrderCDAB
)

// DataType is the wire representation a point's registers carry. The
// 64-bit family (register_count=4) sits alongside the 16/32-bit types
// per §4.2.6's supported data_type list.
type DataType int

const (
	TypeUint16 DataType = iota
	TypeInt16
	TypeUint32
	TypeInt32
	TypeFloat32
	TypeUint64
	TypeInt64
	TypeFloat64
	TypeBit
)

// RegisterCountFor returns the implicit register count §4.2.6 assigns a
// data_type: 1 for the 16-bit family, 2 for 32-bit, 4 for 64-bit. TypeBit
// addresses a single register's packed bit, so it also counts as 1.
func RegisterCountFor(dt DataType) uint16 {
	switch dt {
	case TypeUint32, TypeInt32, TypeFloat32:
		return 2
	case TypeUint64, TypeInt64, TypeFloat64:
		return 4
	default:
		return 1
	}
}

// permuteBytes applies the byte_order transform to a natural-order
// register byte sequence (each register's two bytes big-endian, registers
// concatenated in the order received). Every defined order is its own
// inverse (ABCD is identity, DCBA is a full reversal, BADC swaps bytes
// within each register pair, CDAB reverses word order), so the same
// permutation is used for both decode (wire → canonical big-endian) and
// encode (canonical big-endian → wire): applying it twice restores the
// original sequence.
//
// DCBA reverses the entire byte sequence rather than reassembling
// register-by-register: for registers hi=0x4048, lo=0xF5C3 the natural
// sequence is 40 48 F5 C3, and DCBA must yield C3 F5 48 40 (§4.2.6's
// "from_le_bytes over natural register order" rule), not the 48 40 C3 F5
// that swapping bytes within each register alone (BADC) would produce.
func permuteBytes(raw []byte, order ByteOrder) []byte {
	n := len(raw) / 2
	out := make([]byte, len(raw))
	switch order {
	case OrderDCBA:
		for i, b := range raw {
			out[len(raw)-1-i] = b
		}
	case OrderBADC:
		for i := 0; i < len(raw); i += 2 {
			out[i], out[i+1] = raw[i+1], raw[i]
		}
	case OrderCDAB:
		for i := 0; i < n; i++ {
			copy(out[i*2:i*2+2], raw[(n-1-i)*2:(n-1-i)*2+2])
		}
	default: // OrderABCD
		copy(out, raw)
	}
	return out
}

// registersToBytes concatenates regs into their natural-order big-endian
// byte sequence (each register's high byte first), then applies order.
func registersToBytes(regs []uint16, order ByteOrder) []byte {
	raw := make([]byte, len(regs)*2)
	for i, r := range regs {
		binary.BigEndian.PutUint16(raw[i*2:i*2+2], r)
	}
	return permuteBytes(raw, order)
}

// bytesToRegisters is registersToBytes' inverse: given the canonical
// big-endian byte representation of a value, returns the register values
// that order would put on the wire.
func bytesToRegisters(canonical []byte, order ByteOrder) []uint16 {
	raw := permuteBytes(canonical, order)
	regs := make([]uint16, len(raw)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(raw[i*2 : i*2+2])
	}
	return regs
}

// DecodeRegisters converts a register block into a Value of the requested
// type. TypeUint16/TypeInt16 use only the first register; the 32-bit
// family uses two; the 64-bit family uses four. uint64 values are
// truncated to int64 when published, per §4.2.6.
func DecodeRegisters(regs []uint16, dt DataType, order ByteOrder) (Value, error) {
	switch dt {
	case TypeUint16:
		if len(regs) < 1 {
			return Null(), &comerr.ProtocolError{Msg: "missing register for uint16"}
		}
		return IntegerValue(int64(regs[0])), nil
	case TypeInt16:
		if len(regs) < 1 {
			return Null(), &comerr.ProtocolError{Msg: "missing register for int16"}
		}
		return IntegerValue(int64(int16(regs[0]))), nil
	case TypeUint32, TypeInt32, TypeFloat32:
		if len(regs) < 2 {
			return Null(), &comerr.ProtocolError{Msg: "missing register pair for 32-bit value"}
		}
		raw := binary.BigEndian.Uint32(registersToBytes(regs[:2], order))
		switch dt {
		case TypeUint32:
			return IntegerValue(int64(raw)), nil
		case TypeInt32:
			return IntegerValue(int64(int32(raw))), nil
		default:
			return FloatValue(float64(math.Float32frombits(raw))), nil
		}
	case TypeUint64, TypeInt64, TypeFloat64:
		if len(regs) < 4 {
			return Null(), &comerr.ProtocolError{Msg: "missing register quad for 64-bit value"}
		}
		raw := binary.BigEndian.Uint64(registersToBytes(regs[:4], order))
		switch dt {
		case TypeUint64:
			return IntegerValue(int64(raw)), nil
		case TypeInt64:
			return IntegerValue(int64(raw)), nil
		default:
			return FloatValue(math.Float64frombits(raw)), nil
		}
	default:
		return Null(), &comerr.InvalidParameter{Msg: "DecodeRegisters: not a register-backed type"}
	}
}

// EncodeRegisters is DecodeRegisters' inverse for downlink writes. Integer
// values are clamped into range rather than rejected, matching the
// teacher's write path (truncating a downlink command should never abort
// the whole batch over one out-of-range point).
func EncodeRegisters(v Value, dt DataType, order ByteOrder) ([]uint16, error) {
	switch dt {
	case TypeUint16:
		i, err := v.Int()
		if err != nil {
			return nil, err
		}
		return []uint16{uint16(clampInt(i, 0, math.MaxUint16))}, nil
	case TypeInt16:
		i, err := v.Int()
		if err != nil {
			return nil, err
		}
		return []uint16{uint16(int16(clampInt(i, math.MinInt16, math.MaxInt16)))}, nil
	case TypeUint32, TypeInt32, TypeFloat32:
		var raw uint32
		switch dt {
		case TypeUint32:
			i, err := v.Int()
			if err != nil {
				return nil, err
			}
			raw = uint32(clampInt(i, 0, math.MaxUint32))
		case TypeInt32:
			i, err := v.Int()
			if err != nil {
				return nil, err
			}
			raw = uint32(int32(clampInt(i, math.MinInt32, math.MaxInt32)))
		default:
			f, err := v.Float()
			if err != nil {
				return nil, err
			}
			raw = math.Float32bits(float32(f))
		}
		var canonical [4]byte
		binary.BigEndian.PutUint32(canonical[:], raw)
		return bytesToRegisters(canonical[:], order), nil
	case TypeUint64, TypeInt64, TypeFloat64:
		var raw uint64
		switch dt {
		case TypeUint64:
			i, err := v.Int()
			if err != nil {
				return nil, err
			}
			if i < 0 {
				i = 0
			}
			raw = uint64(i)
		case TypeInt64:
			i, err := v.Int()
			if err != nil {
				return nil, err
			}
			raw = uint64(i)
		default:
			f, err := v.Float()
			if err != nil {
				return nil, err
			}
			raw = math.Float64bits(f)
		}
		var canonical [8]byte
		binary.BigEndian.PutUint64(canonical[:], raw)
		return bytesToRegisters(canonical[:], order), nil
	default:
		return nil, &comerr.InvalidParameter{Msg: "EncodeRegisters: not a register-backed type"}
	}
}

func clampInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DecodeBit extracts one bit at bitPosition (0 = least significant) from a
// 16-bit register holding several packed boolean points. When reverse is
// true the bit order within the register is flipped (bit 0 becomes the
// most-significant bit). The poll loop passes false here and applies a
// point's reverse flag by inverting the decoded value instead.
func DecodeBit(reg uint16, bitPosition uint8, reverse bool) Value {
	pos := bitPosition
	if reverse {
		pos = 15 - bitPosition
	}
	return BoolValue((reg>>pos)&1 == 1)
}

// EncodeBit sets or clears bitPosition within base, returning the new
// register value to write.
func EncodeBit(base uint16, bitPosition uint8, reverse bool, on bool) uint16 {
	pos := bitPosition
	if reverse {
		pos = 15 - bitPosition
	}
	if on {
		return base | (1 << pos)
	}
	return base &^ (1 << pos)
}

// DecodeCoilBit extracts one bit from a coil-response byte sequence
// (function codes 01/02), where bit i of byte i/8 corresponds to coil
// address offset i.
func DecodeCoilBit(bytes []byte, offset int) (Value, error) {
	byteIdx := offset / 8
	if byteIdx >= len(bytes) {
		return Null(), &comerr.ProtocolError{Msg: "coil offset beyond response"}
	}
	return BoolValue((bytes[byteIdx]>>(uint(offset)%8))&1 == 1), nil
}
