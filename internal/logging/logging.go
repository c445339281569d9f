// Package logging builds the slog loggers shared by the hireflow binaries.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler and base attributes of a logger.
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // text or json
	Service string // added as a "service" attribute when set
}

// New creates a logger writing to stderr. Stdout is kept for command output.
func New(opts Options) *slog.Logger {
	return NewWithWriter(opts, os.Stderr)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(opts Options, w io.Writer) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With("service", opts.Service)
	}
	return logger
}

// Discard returns a logger that drops every record below ERROR and writes
// the rest nowhere.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ParseLevel converts a level name to slog.Level. Unknown names map to INFO.
func ParseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
