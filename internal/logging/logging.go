// ABOUTME: Structured logging setup and identifier redaction
// ABOUTME: Session ids, tokens, and signatures are logged truncated, key material never

package logging

import (
	"log/slog"
	"os"
)

// Setup configures the default slog logger from config values and returns
// it. Format "json" selects the JSON handler, anything else text.
func Setup(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Redact truncates an identifier for logging. Long values keep an 8-char
// prefix so operators can correlate records without the log becoming a
// credential store.
func Redact(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "…"
}
