// Package logger builds the process-wide slog.Logger on top of
// charmbracelet/log.
package logger

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// Config controls level, output format and decoration.
type Config struct {
	Level      string
	Format     string
	Prefix     string
	TimeFormat string
}

var formatters = map[string]log.Formatter{
	"text":   log.TextFormatter,
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
}

// New returns a slog.Logger writing to w. Unknown levels fall back to info
// and unknown formats to text.
func New(w io.Writer, cfg Config) *slog.Logger {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}

	formatter, ok := formatters[strings.ToLower(cfg.Format)]
	if !ok {
		formatter = log.TextFormatter
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "2006-01-02 15:04:05"
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Level:           level,
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
