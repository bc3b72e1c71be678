// Package logging builds the slog loggers used by heapctl and handed to the
// allocators.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/joshuapare/fixheap/internal/config"
)

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// New builds a logger writing to w according to cfg. Quiet raises the
// threshold to errors only; verbose lowers it to debug.
func New(w io.Writer, cfg *config.Config, verbose, quiet bool) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	switch {
	case quiet:
		level = slog.LevelError
	case verbose || cfg.LogAlloc:
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}
