package bus

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/mochi-mqtt/server/v2"
)

// TelemetrySample is one decoded point value carried by a TelemetryBatch.
type TelemetrySample struct {
	PointID   string  `json:"point_id"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// TelemetryBatch mirrors the data model entity of the same name: all
// telemetry/signal values produced by one poll cycle of one channel.
type TelemetryBatch struct {
	ChannelID uint16            `json:"channel_id"`
	Telemetry []TelemetrySample `json:"telemetry"`
	Signal    []TelemetrySample `json:"signal"`
}

// MQTTFanout publishes every TelemetryBatch to an embedded mochi-mqtt
// broker topic, as an optional secondary sink alongside the KvBus.
// Grounded on the teacher's own embedded-broker wiring
// (core.ServerMQTT / pluginapi.HostEnv.MQTT), repurposed here as a
// telemetry publish target instead of a general-purpose broker.
type MQTTFanout struct {
	server *mqtt.Server
}

func NewMQTTFanout(server *mqtt.Server) *MQTTFanout {
	return &MQTTFanout{server: server}
}

// Publish sends the batch as retained JSON on
// "comsrv/telemetry/{channel_id}".
func (f *MQTTFanout) Publish(batch TelemetryBatch) error {
	if f == nil || f.server == nil {
		return nil
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("bus: marshal telemetry batch: %w", err)
	}
	topic := fmt.Sprintf("comsrv/telemetry/%d", batch.ChannelID)
	return f.server.Publish(topic, payload, true, 0)
}
