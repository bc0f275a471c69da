// Package audit records every exchange command dispatched to the rate
// provider in an append-only sink.
package audit

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// TimeLayout is the human-readable timestamp written to every entry.
const TimeLayout = "2006-01-02 15:04:05"

// Supported drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Log is an append-only audit sink.
type Log interface {
	Record(ctx context.Context, at time.Time) error
	Close() error
}

// Config selects and configures the sink.
type Config struct {
	Driver string
	Path   string
}

// Open returns the sink named by cfg.Driver.
func Open(cfg Config) (Log, error) {
	switch cfg.Driver {
	case "", DriverFile:
		return NewFileLog(cfg.Path), nil
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("audit: unknown driver %q", cfg.Driver)
	}
}

// Line renders the entry written for a dispatch at at.
func Line(at time.Time) string {
	return "Exchange command executed on " + at.Format(TimeLayout)
}

// FileLog appends one text line per entry to a file. The file is opened for
// each write so rotation by external tools is harmless.
type FileLog struct {
	path string
	mu   sync.Mutex
}

// NewFileLog returns a FileLog writing to path.
func NewFileLog(path string) *FileLog {
	if path == "" {
		path = "exchange_logs.txt"
	}
	return &FileLog{path: path}
}

// Path returns the file being written.
func (l *FileLog) Path() string {
	return l.path
}

// Record appends a line for at.
func (l *FileLog) Record(ctx context.Context, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", l.path, err)
	}

	if _, err := f.WriteString(Line(at) + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("audit: write %s: %w", l.path, err)
	}
	return f.Close()
}

// Close is a no-op; FileLog holds no open handle between writes.
func (l *FileLog) Close() error {
	return nil
}
