// Package comlog provides the process-wide logger and the per-channel
// JSON log sink described in the external interfaces section of the spec.
package comlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// ProcessLogger owns the single process-wide log stream and can reopen it
// in response to SIGUSR1, so external log-rotation tooling can truncate or
// move the file without the process losing its handle.
type ProcessLogger struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	Run      *logrus.Logger
	PluginLog logrus.FieldLogger
}

// NewProcessLogger opens (creating if needed) path/run.log and returns a
// ProcessLogger whose Run field is ready for use.
func NewProcessLogger(dir string, debug bool) (*ProcessLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("comlog: create log dir %s: %w", dir, err)
	}
	path := dir + "/run.log"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("comlog: open %s: %w", path, err)
	}

	run := logrus.New()
	run.SetOutput(f)
	run.SetFormatter(&logrus.JSONFormatter{})
	if debug {
		run.SetLevel(logrus.DebugLevel)
		run.ReportCaller = true
	}

	l := &ProcessLogger{path: path, file: f, Run: run}
	l.PluginLog = logrus.NewEntry(run)
	return l, nil
}

// Reopen closes and reopens the underlying file, for SIGUSR1 handling.
func (l *ProcessLogger) Reopen() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		_ = l.file.Close()
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.file = f
	l.Run.SetOutput(f)
	return nil
}

// Close releases the underlying file handle.
func (l *ProcessLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
	}
}

// ChannelLogFormatter renders the per-channel JSON log line shape
// specified in the external interfaces section: one JSON object per line
// with timestamp, level, channel_id, channel_name, direction, slave_id,
// hex, bytes and a free-form message.
type ChannelLogFormatter struct{}

func (f *ChannelLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(map[string]any, len(entry.Data)+2)
	for k, v := range entry.Data {
		data[k] = v
	}
	data["timestamp"] = entry.Time.Format("2006-01-02T15:04:05.000000Z07:00")
	data["level"] = levelName(entry.Level)
	data["message"] = entry.Message

	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.DebugLevel:
		return "DEBUG"
	case logrus.WarnLevel:
		return "WARN"
	case logrus.ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}
