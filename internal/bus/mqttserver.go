package bus

import (
	"fmt"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// NewEmbeddedBroker starts an in-process mochi-mqtt broker listening on
// addr (host:port), used both as the MQTTFanout publish target and as a
// plain MQTT endpoint for any external subscriber. No equivalent
// construction helper exists in the retrieval pack (the teacher's own
// core.ServerMQTT was not present in the copied sources), so this wires
// the library's own documented New/AddHook/AddListener/Serve sequence
// directly.
func NewEmbeddedBroker(addr string) (*mqtt.Server, error) {
	server := mqtt.New(nil)
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("bus: add allow-all hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "comsrv", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("bus: add tcp listener %s: %w", addr, err)
	}

	if err := server.Serve(); err != nil {
		return nil, fmt.Errorf("bus: serve mqtt broker: %w", err)
	}
	return server, nil
}
