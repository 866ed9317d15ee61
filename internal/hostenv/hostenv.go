// Package hostenv bundles the process-wide dependencies the server command
// wires once at startup and threads through channel startup and telemetry
// fan-in: logging, the downstream bus, the database handle, and the wait
// group tracking every long-lived goroutine for a clean shutdown.
package hostenv

import (
	"sync"

	"github.com/fieldwave/comsrv/internal/bus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Env is the single source of shared, long-lived dependencies passed to
// channel startup and its telemetry consumers in place of a growing
// parameter list.
type Env struct {
	Logger logrus.FieldLogger
	Bus    bus.KvBus
	DB     *gorm.DB
	WG     *sync.WaitGroup
}
