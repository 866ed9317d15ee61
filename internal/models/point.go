package models

import "time"

// PointConfig is one persisted register/coil mapping belonging to a
// Channel. Field set mirrors aldas-go-modbus-client/modbus.ModbusPoint
// (FC/Address/Quantity/DataType/BitIndex/ByteOrder/Scale/Offset/
// Precision), the same shape this codebase's own device.go
// DeviceTypePoint already carried for a generic device catalog; here it
// is narrowed to exactly the fields the protocol engine needs.
type PointConfig struct {
	ID        string `gorm:"primaryKey;type:char(36)" json:"id"`
	ChannelID uint   `gorm:"column:channel_id;not null;index" json:"channel_id"`

	PointID         string  `gorm:"column:point_id;size:128;not null;index" json:"point_id"`
	SlaveID         uint8   `gorm:"column:slave_id;not null" json:"slave_id"`
	FunctionCode    uint8   `gorm:"column:function_code;not null" json:"function_code"` // 1/2/3/4/5/6/15/16
	RegisterAddress uint16  `gorm:"column:register_address;not null" json:"register_address"`
	DataType        string  `gorm:"column:data_type;size:16;not null" json:"data_type"` // uint16/int16/uint32/int32/float32/uint64/int64/float64/bool (aliases: see factory.parseDataType)
	RegisterCount   uint16  `gorm:"column:register_count;not null;default:1" json:"register_count"`
	ByteOrder       string  `gorm:"column:byte_order;size:8;not null;default:'ABCD'" json:"byte_order"`
	BitPosition     uint8   `gorm:"column:bit_position" json:"bit_position"`
	Scale           float64 `gorm:"column:scale;not null;default:1" json:"scale"`
	Offset          float64 `gorm:"column:offset;not null;default:0" json:"offset"`
	Reverse         bool    `gorm:"column:reverse" json:"reverse"`
	Role            string  `gorm:"column:role;size:16;not null;default:'telemetry'" json:"role"` // telemetry|signal

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PointConfig) TableName() string { return "point_config" }
