package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Logger is the process-wide logger. It writes to stderr at info level until Init is called.
var Logger = New(os.Stderr, log.InfoLevel)

// New creates a logger writing to w at the given level
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
}

// ParseLevel accepts debug, info, warn, error (case-insensitive). Empty means info.
func ParseLevel(s string) (log.Level, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Init replaces the global logger. An empty level falls back to GRIPES_LOG_LEVEL.
func Init(w io.Writer, level string) error {
	if level == "" {
		level = os.Getenv("GRIPES_LOG_LEVEL")
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	Logger = New(w, lvl)
	return nil
}

// Discard returns a logger that drops everything, for tests and quiet commands
func Discard() *log.Logger {
	return New(io.Discard, log.FatalLevel)
}

// WithPrefix returns a child of the global logger with a component prefix
func WithPrefix(prefix string) *log.Logger {
	return Logger.WithPrefix(prefix)
}
