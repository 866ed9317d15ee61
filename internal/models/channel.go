package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChannelStatus is the live, non-persisted status merged onto a Channel
// row for the introspection API response (§6 "channel list + stats").
type ChannelStatus struct {
	Working         bool   `gorm:"-" json:"working"`
	Linking         bool   `gorm:"-" json:"linking"`
	BytesSent       uint64 `gorm:"-" json:"bytes_sent"`
	BytesReceived   uint64 `gorm:"-" json:"bytes_received"`
	PointsTotalRead uint64 `gorm:"-" json:"points_total_read"`
	PointsErrorRead uint64 `gorm:"-" json:"points_error_read"`
}

// Channel is one persisted communication channel: a protocol type plus
// its free-form connection parameters (§6's host/port/device/baud_rate/
// polling.* table), stored as JSON so a new protocol type never requires
// a migration. Grounded on the teacher's own Channel row (UUID primary
// key, Disable flag, CreatedAt/UpdatedAt), narrowed from its
// mbus-specific flat PhysicalLink/Device/TCPIPAddr/Endianness/WordOrder
// fields down to the generic parameter bag the channel factory's
// Builder/Protocol interface actually consumes.
type Channel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID        string `gorm:"column:uuid;size:36;uniqueIndex;not null" json:"uuid"`
	Name        string `gorm:"column:name;size:256;not null" json:"name"`
	Description string `gorm:"column:description;size:512" json:"description"`
	Protocol    string `gorm:"column:protocol;size:32;not null;index" json:"protocol"` // ModbusTCP | ModbusRTU
	Parameters  []byte `gorm:"column:parameters;type:jsonb;not null" json:"parameters"`
	Disabled    bool   `gorm:"column:disabled;not null;default:false" json:"disabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Status ChannelStatus `gorm:"-" json:"status"`
}

func (Channel) TableName() string { return "channel" }

func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	return nil
}
