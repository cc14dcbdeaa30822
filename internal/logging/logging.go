// Package logging configures structured slog output for the daemon.
package logging

import (
	"fmt"
	"io"
	"log/slog"
)

// level is the process-wide dynamic log level. It can be adjusted at
// runtime without recreating handlers.
var level slog.LevelVar

// New creates a JSON slog.Logger writing to w at the given level.
func New(w io.Writer, levelStr string) (*slog.Logger, error) {
	if err := SetLevel(levelStr); err != nil {
		return nil, err
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: &level})
	return slog.New(handler), nil
}

// SetLevel updates the dynamic log level for all loggers created by New.
func SetLevel(levelStr string) error {
	parsed, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	level.Set(parsed)
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch levelStr {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", levelStr)
	}
}

// Redact replaces a secret value with a fixed mask for logging.
// Candidate passwords must never reach the log stream; callers log
// Redact(secret) instead of the value itself.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[redacted]"
}
