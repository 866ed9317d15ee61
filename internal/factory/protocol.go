// Package factory implements the channel factory and lifecycle manager:
// the registry that instantiates protocol clients by type, enforces
// single-owner semantics per channel id, and supervises start/stop/
// update/cleanup.
package factory

import (
	"context"

	"github.com/fieldwave/comsrv/internal/modbus"
)

// ChannelConfig is the externally-produced, protocol-agnostic
// description of one channel. Point lists and modbus_mappings live on
// RuntimeChannelConfig, which extends this after the config loader (out
// of scope here) resolves mappings.
type ChannelConfig struct {
	ID          uint16
	Name        string
	Description string
	Protocol    string
	Parameters  map[string]any
}

// RuntimeChannelConfig adds the resolved point lists a protocol needs to
// initialize. A point with no modbus_mapping is dropped with a log line,
// never treated as fatal.
type RuntimeChannelConfig struct {
	ChannelConfig
	Points []modbus.ModbusPoint
}

// Status is the snapshot a Protocol reports back through Status().
type Status struct {
	ChannelID     uint16
	State         modbus.ConnectionState
	IsConnected   bool
	BytesSent     uint64
	BytesReceived uint64
}

// Protocol is the full capability set a channel's running client exposes.
// Grounded on pluginapi.Instance's Init/Close/UpdateConfig/Get, expanded
// to the exact surface the communication core's channel factory drives.
type Protocol interface {
	Initialize(ctx context.Context, cfg RuntimeChannelConfig) error
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	Status() Status

	// Control issues a single boolean command (FC05) to point_id.
	Control(ctx context.Context, pointID string, value bool) error
	// Adjustment issues a single analog/setpoint command (FC06/16) to point_id.
	Adjustment(ctx context.Context, pointID string, value float64) error

	StartPeriodicTasks(ctx context.Context) error
	StopPeriodicTasks() error

	SetDataChannel(ch chan<- modbus.TelemetryBatch)
	SetCommandReceiver(ch <-chan Command)
}

// Command is a pending write delivered from the factory's command intake
// task, decoupled from the transport-specific bus Command in
// internal/bus so the protocol engine never imports the bus package.
type Command struct {
	Kind    CommandKind
	PointID string
	Value   float64
}

type CommandKind int

const (
	CommandControl CommandKind = iota
	CommandAdjustment
)

// Builder constructs a fresh, uninitialized Protocol for one channel.
// Construction is pure; Initialize/Connect do the real work.
type Builder interface {
	ProtocolType() modbus.ProtocolType
	Build(channelID uint16) Protocol
}
