package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New builds the application logger. Production gets JSON output for
// log shipping; every other environment gets human-readable text with
// source locations.
func New(level, environment string) *slog.Logger {
	prod := strings.ToLower(environment) == "prod"

	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: !prod,
	}

	var handler slog.Handler
	if prod {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		slog.String("service", "guardian"),
		slog.String("environment", environment),
	)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
