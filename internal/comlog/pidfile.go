package comlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// CreatePidFile writes the current process id to path, refusing to do so
// if the pid recorded there still belongs to a live process. A stale or
// corrupt pidfile is treated as absent and overwritten.
func CreatePidFile(path string) error {
	if path == "" {
		return errors.New("comlog: pid file path is empty")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("comlog: create pid dir: %w", err)
		}
	}

	if b, err := os.ReadFile(path); err == nil {
		if s := strings.TrimSpace(string(b)); s != "" {
			if oldPID, err := strconv.Atoi(s); err == nil && oldPID > 0 {
				exists, probeErr := processExists(oldPID)
				if probeErr != nil {
					return fmt.Errorf("comlog: probe existing pid %d: %w", oldPID, probeErr)
				}
				if exists {
					return fmt.Errorf("comlog: process already running (pid=%d) from pidfile %s", oldPID, path)
				}
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("comlog: read pidfile: %w", err)
	}

	pid := os.Getpid()
	tmp := fmt.Sprintf("%s.tmp.%d", path, pid)
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("comlog: write temp pidfile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("comlog: rename pidfile: %w", err)
	}
	return nil
}

// RemovePidFile removes path, ignoring a missing file.
func RemovePidFile(path string) {
	_ = os.Remove(path)
}

func processExists(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	if runtime.GOOS == "windows" {
		return true, nil
	}
	err := syscall.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, syscall.ESRCH):
		return false, nil
	case errors.Is(err, syscall.EPERM):
		return true, nil
	default:
		return false, err
	}
}
