// Package observability builds the process logger and the tracing pipeline.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger at info level, or a text logger at debug
// level when development is set.
func NewLogger(development bool) *slog.Logger {
	return newLogger(os.Stdout, development)
}

func newLogger(w io.Writer, development bool) *slog.Logger {
	if development {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
