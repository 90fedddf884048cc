// Package logging provides structured logging setup for house-deals.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the default slog logger and returns it.
// Dev mode uses human-readable text at debug level; prod uses JSON.
func Setup(level string, devMode bool) *slog.Logger {
	return setup(os.Stdout, level, devMode)
}

func setup(w io.Writer, level string, devMode bool) *slog.Logger {
	var handler slog.Handler
	if devMode {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: ParseLevel(level),
		})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
