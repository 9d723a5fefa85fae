package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a JSON slog logger on stdout tagged with the app name.
func New(level, app string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, app)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, app string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	logger := slog.New(handler)
	if app != "" {
		logger = logger.With(slog.String("app", app))
	}
	return logger
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
// Unknown values fall back to info.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
