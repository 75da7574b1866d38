package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger tagged with the service name so the
// server, the ingest worker, and the seed tool are distinguishable in shared
// log streams.
func New(service, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	log := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	if service != "" {
		log = log.With("service", service)
	}
	return log
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
