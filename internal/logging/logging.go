// Package logging builds the daemon's slog handler chain: console and session
// file, optional Graylog and OTel sinks, and attributes sampled per record.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath names the session log, e.g. swarmlogs/swarmd.20260212_213836.log.
func LogFilePath(logsDir, serviceName string, sessionStart time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", serviceName, sessionStart.Format("20060102_150405")))
}

// OpenSessionLog creates logsDir if needed and opens a fresh session log.
// A leftover file with the same name is kept as <name>.old.
func OpenSessionLog(logsDir, serviceName string, sessionStart time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, "", fmt.Errorf("creating logs dir: %w", err)
	}

	path := LogFilePath(logsDir, serviceName, sessionStart)
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, "", fmt.Errorf("rotating %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", path, err)
	}
	return f, path, nil
}
