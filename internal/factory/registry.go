package factory

import (
	"sync"

	"github.com/fieldwave/comsrv/internal/modbus"
)

var (
	buildersMu sync.RWMutex
	builders   = make(map[modbus.ProtocolType]Builder)
)

// RegisterBuilder registers a protocol builder, one per ProtocolType.
// A later registration for the same ProtocolType replaces the earlier
// one (last writer wins); it is safe to call at any time.
func RegisterBuilder(b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()

	builders[b.ProtocolType()] = b
}

// GetBuilder looks up the builder for a protocol type.
func GetBuilder(t modbus.ProtocolType) (Builder, bool) {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	b, ok := builders[t]
	return b, ok
}

// AllBuilders returns every registered builder, for introspection.
func AllBuilders() []Builder {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	out := make([]Builder, 0, len(builders))
	for _, b := range builders {
		out = append(out, b)
	}
	return out
}
