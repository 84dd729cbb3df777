// ABOUTME: Tests for logger setup and identifier redaction
// ABOUTME: Covers level selection and truncation behavior

package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"", slog.LevelInfo, slog.LevelDebug},
		{"bogus", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := Setup(tt.level, "text")
			ctx := context.Background()
			if !logger.Enabled(ctx, tt.enabled) {
				t.Errorf("level %q should enable %v", tt.level, tt.enabled)
			}
			if logger.Enabled(ctx, tt.muted) {
				t.Errorf("level %q should mute %v", tt.level, tt.muted)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("short"); got != "short" {
		t.Errorf("short values pass through, got %q", got)
	}
	if got := Redact("0123456789abcdef"); got != "01234567…" {
		t.Errorf("long values truncate, got %q", got)
	}
}
