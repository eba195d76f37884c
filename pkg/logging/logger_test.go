package logging

import (
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := New(tt.level)
			if logger == nil {
				t.Fatal("New returned nil")
			}
			if !logger.Enabled(nil, tt.want) {
				t.Errorf("logger with level %q should log at %v", tt.level, tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(nil, tt.want-4) {
				t.Errorf("logger with level %q should not log below %v", tt.level, tt.want)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default returned nil")
	}
	if !logger.Enabled(nil, slog.LevelInfo) {
		t.Error("default logger should log at info")
	}
}

func TestWith(t *testing.T) {
	logger := Default().With("component", "test")
	if logger == nil {
		t.Fatal("With returned nil")
	}
}
