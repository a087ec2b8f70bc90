package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Options selects the handler built by New.
type Options struct {
	Level  string
	Format string
	Redact bool

	// Redactor is used when Redact is set. Nil means NewRedactor().
	Redactor *Redactor
}

// New builds the process logger.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, handlerOpts)
	case "json":
		h = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	if opts.Redact {
		h = NewRedactingHandler(h, opts.Redactor)
	}
	return slog.New(h), nil
}

// ParseLevel maps a config level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}
