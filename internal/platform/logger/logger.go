// Package logger constructs the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Level defaults to Info;
// set CARAVEL_LOG_DEBUG=true for debug output.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("CARAVEL_LOG_DEBUG") == "true" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
