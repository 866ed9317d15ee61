package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fieldwave/comsrv/internal/comlog"
	"github.com/sirupsen/logrus"
)

// ChannelLogger owns one append-only log file per channel, trimmed from
// the teacher's four parallel streams (access/run/mqtt/sql) down to the
// single stream the channel log sink specifies.
type ChannelLogger struct {
	mu   sync.Mutex
	path string
	file *os.File
	log  *logrus.Logger
}

// NewChannelLogger opens dir/<channel_id>.log, creating dir if needed.
func NewChannelLogger(dir string, channelID uint16) (*ChannelLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("factory: create channel log dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.log", channelID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("factory: open channel log %s: %w", path, err)
	}

	l := logrus.New()
	l.SetOutput(f)
	l.SetFormatter(&comlog.ChannelLogFormatter{})

	return &ChannelLogger{path: path, file: f, log: l}, nil
}

// Entry returns a FieldLogger pre-populated with channel_id/channel_name,
// ready for direction/slave_id/hex/bytes fields to be added per line.
func (c *ChannelLogger) Entry(channelID uint16, channelName string) logrus.FieldLogger {
	return c.log.WithFields(logrus.Fields{
		"channel_id":   channelID,
		"channel_name": channelName,
	})
}

func (c *ChannelLogger) Reopen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file != nil {
		_ = c.file.Close()
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	c.file = f
	c.log.SetOutput(f)
	return nil
}

func (c *ChannelLogger) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
