package factory

import (
	"fmt"
	"strings"

	"github.com/fieldwave/comsrv/internal/modbus"
)

// PointFromRow converts one persisted point row's string-tagged
// fields into the modbus.ModbusPoint the protocol engine polls with. The
// three string enums (data_type/byte_order/role) are the on-disk shape
// chosen for models.PointConfig so a new data type never needs a schema
// migration; this is the one place that maps them back to the typed
// modbus constants.
type PointRow struct {
	PointID         string
	SlaveID         uint8
	FunctionCode    uint8
	RegisterAddress uint16
	DataType        string
	RegisterCount   uint16
	ByteOrder       string
	BitPosition     uint8
	Scale           float64
	Offset          float64
	Reverse         bool
	Role            string
}

func PointFromRow(r PointRow) (modbus.ModbusPoint, error) {
	dt, ok := parseDataType(r.DataType)
	if !ok {
		return modbus.ModbusPoint{}, fmt.Errorf("factory: unknown data_type %q for point %s", r.DataType, r.PointID)
	}
	bo, ok := parseByteOrder(r.ByteOrder)
	if !ok {
		return modbus.ModbusPoint{}, fmt.Errorf("factory: unknown byte_order %q for point %s", r.ByteOrder, r.PointID)
	}

	return modbus.ModbusPoint{
		PointID:         r.PointID,
		SlaveID:         r.SlaveID,
		FunctionCode:    r.FunctionCode,
		RegisterAddress: r.RegisterAddress,
		DataType:        dt,
		RegisterCount:   r.RegisterCount,
		ByteOrder:       bo,
		BitPosition:     r.BitPosition,
		Scale:           r.Scale,
		Offset:          r.Offset,
		Reverse:         r.Reverse,
		Role:            parseRole(r.Role),
	}, nil
}

// parseDataType accepts every case-insensitive data_type spelling §4.2.6
// names, including the uint32_be/int32_be/float/float32_be/double/
// float64_be synonyms and "bool" (the point-role flag uses "bit" for the
// bit_position field, but the wire data_type itself is spelled "bool").
func parseDataType(s string) (modbus.DataType, bool) {
	switch strings.ToLower(s) {
	case "uint16":
		return modbus.TypeUint16, true
	case "int16":
		return modbus.TypeInt16, true
	case "uint32", "uint32_be":
		return modbus.TypeUint32, true
	case "int32", "int32_be":
		return modbus.TypeInt32, true
	case "float32", "float32_be", "float":
		return modbus.TypeFloat32, true
	case "uint64":
		return modbus.TypeUint64, true
	case "int64":
		return modbus.TypeInt64, true
	case "float64", "float64_be", "double":
		return modbus.TypeFloat64, true
	case "bool", "bit":
		return modbus.TypeBit, true
	default:
		return 0, false
	}
}

func parseByteOrder(s string) (modbus.ByteOrder, bool) {
	switch strings.ToUpper(s) {
	case "ABCD", "":
		return modbus.OrderABCD, true
	case "DCBA":
		return modbus.OrderDCBA, true
	case "BADC":
		return modbus.OrderBADC, true
	case "CDAB":
		return modbus.OrderCDAB, true
	default:
		return 0, false
	}
}

func parseRole(s string) modbus.PointRole {
	if strings.EqualFold(s, "signal") {
		return modbus.RoleSignal
	}
	return modbus.RoleTelemetry
}
