// Package logging configures the process-wide charmbracelet logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// New builds a timestamped logger writing to w at the named level. Unknown
// levels fall back to info.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           parsed,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
}

// Setup installs a stderr logger as the package default and returns it.
func Setup(level string) *log.Logger {
	logger := New(os.Stderr, level)
	log.SetDefault(logger)
	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
