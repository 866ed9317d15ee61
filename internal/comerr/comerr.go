// Package comerr models the error taxonomy from the error handling
// design: typed, wrapping errors rather than bare strings, so callers can
// distinguish config-time failures from per-batch protocol failures with
// errors.As instead of substring matching.
package comerr

import (
	"fmt"
	"strings"
)

// ConfigError: missing host, duplicate channel id, malformed byte_order.
// Surfaced to the caller; the operation leaves no partial state.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Msg, e.Err)
	}
	return "config error: " + e.Msg
}
func (e *ConfigError) Unwrap() error { return e.Err }

func NewConfigError(msg string) *ConfigError { return &ConfigError{Msg: msg} }

// ProtocolNotSupported: unknown protocol string or unsupported function code.
type ProtocolNotSupported struct{ Name string }

func (e *ProtocolNotSupported) Error() string {
	return fmt.Sprintf("protocol not supported: %q", e.Name)
}

// InvalidParameter: unsupported data_type, bit_position > 15, mismatched
// weighted-average lengths, and similar caller-supplied mistakes.
type InvalidParameter struct{ Msg string }

func (e *InvalidParameter) Error() string { return "invalid parameter: " + e.Msg }

// ProtocolError: CRC mismatch, function-code mismatch, exception PDU.
// Local to one batch/command; other batches continue.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Msg, e.Err)
	}
	return "protocol error: " + e.Msg
}
func (e *ProtocolError) Unwrap() error { return e.Err }

// TimeoutError: no matching response after the configured retry bound.
type TimeoutError struct{ Msg string }

func (e *TimeoutError) Error() string { return "timeout: " + e.Msg }

// ConnectionError: initial dial failed after all retries in a burst.
type ConnectionError struct {
	Msg string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection error: %s: %v", e.Msg, e.Err)
	}
	return "connection error: " + e.Msg
}
func (e *ConnectionError) Unwrap() error { return e.Err }

// NotConnected: control/adjustment attempted on a disconnected channel.
type NotConnected struct{ ChannelID uint16 }

func (e *NotConnected) Error() string {
	return fmt.Sprintf("channel %d is not connected", e.ChannelID)
}

// ChannelError: channel id lookup failed during an update or get.
type ChannelError struct{ Msg string }

func (e *ChannelError) Error() string { return "channel error: " + e.Msg }

// connectionLostSubstrings are the error-text fragments
// LooksLikeConnectionLost treats as a lost connection. The polling loop
// does not call it: modbus.Connection.Transact marks the connection
// Failed on any write or read error.
var connectionLostSubstrings = []string{
	"broken pipe",
	"connection reset",
	"connection refused",
	"tcp send error",
	"tcp receive error",
}

// LooksLikeConnectionLost reports whether err's text matches one of the
// known connection-lost substrings (case-insensitive).
func LooksLikeConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range connectionLostSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
