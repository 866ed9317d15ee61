package factory

import (
	"fmt"
	"time"

	"github.com/fieldwave/comsrv/internal/comerr"
	"github.com/fieldwave/comsrv/internal/modbus"
)

// dialerFromParameters builds the transport dialer for a channel from its
// protocol-specific `parameters` map, per the host/port/device/baud_rate/
// data_bits/stop_bits/parity/timeout_ms parameter table.
func dialerFromParameters(protocol modbus.ProtocolType, params map[string]any) (modbus.TransportDialer, error) {
	timeout := durationMS(params, "timeout_ms", 1000)

	switch protocol {
	case modbus.ModbusTCP:
		host, ok := stringParam(params, "host")
		if !ok || host == "" {
			return nil, comerr.NewConfigError("modbus tcp channel missing host")
		}
		port := intParam(params, "port", 502)
		return modbus.TCPDialer(fmt.Sprintf("%s:%d", host, port), timeout), nil

	case modbus.ModbusRTU:
		device, ok := stringParam(params, "device")
		if !ok || device == "" {
			device, ok = stringParam(params, "device_path")
			if !ok || device == "" {
				return nil, comerr.NewConfigError("modbus rtu channel missing device")
			}
		}
		cfg := modbus.SerialConfig{
			Device:   device,
			BaudRate: intParam(params, "baud_rate", 9600),
			DataBits: intParam(params, "data_bits", 8),
			StopBits: intParam(params, "stop_bits", 1),
			Parity:   parityParam(params),
			Timeout:  timeout,
		}
		return modbus.SerialDialer(cfg), nil

	default:
		return nil, &comerr.ProtocolNotSupported{Name: protocol.String()}
	}
}

func pollConfigFromParameters(params map[string]any) modbus.PollConfig {
	cfg := modbus.DefaultPollConfig()
	polling, _ := params["polling"].(map[string]any)
	if polling == nil {
		return cfg
	}
	if v := intParam(polling, "default_interval_ms", 0); v > 0 {
		cfg.Interval = time.Duration(v) * time.Millisecond
	}
	if v := intParam(polling, "reconnect_max_consecutive", 0); v > 0 {
		cfg.RetryAttempts = v
	}
	if v := intParam(polling, "reconnect_cooldown_ms", 0); v > 0 {
		cfg.RetryDelay = time.Duration(v) * time.Millisecond
	}
	if batchCfg, ok := polling["batch_config"].(map[string]any); ok {
		if v := intParam(batchCfg, "max_batch_size", 0); v > 0 {
			cfg.MaxBatchSize = uint16(v)
		}
		if v := intParam(batchCfg, "max_gap", 0); v > 0 {
			cfg.MaxGap = uint16(v)
		}
	}
	return cfg
}

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func parityParam(params map[string]any) string {
	s, ok := stringParam(params, "parity")
	if !ok {
		return "N"
	}
	switch s {
	case "Even", "even", "E":
		return "E"
	case "Odd", "odd", "O":
		return "O"
	default:
		return "N"
	}
}

func durationMS(params map[string]any, key string, def int) time.Duration {
	return time.Duration(intParam(params, key, def)) * time.Millisecond
}
