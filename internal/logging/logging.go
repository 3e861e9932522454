// Package logging provides structured logging setup for johap.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a logger writing to w. Dev mode logs human-readable text at
// debug level; otherwise JSON at info level. Every record carries app=johap.
func New(w io.Writer, devMode bool) *slog.Logger {
	var handler slog.Handler
	if devMode {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.New(handler).With("app", "johap")
}

// Setup installs New(os.Stdout, devMode) as the default logger.
func Setup(devMode bool) {
	slog.SetDefault(New(os.Stdout, devMode))
}
