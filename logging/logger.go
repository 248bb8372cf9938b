// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

const (
	envDevelopment = "development"
	envProduction  = "production"
)

// New returns a text logger in development and a JSON logger elsewhere.
func New(env string, level slog.Level) *slog.Logger {
	return newWithWriter(os.Stdout, env, level)
}

func newWithWriter(w io.Writer, env string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch env {
	case envDevelopment, "local":
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		return slog.New(slog.NewJSONHandler(w, opts))
	}
}

// Discard drops every record. Used by tests and tools that want silence.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Err is a shorthand attribute for errors.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.String("err", err.Error())
}
