package logging

import (
	"context"
	"log/slog"
	"testing"

	"surfsup-server/internal/config"
)

func TestNew_RespectsLevel(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{name: "dev console", version: "dev"},
		{name: "release json", version: "1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(config.Config{AppEnv: "prod", LogLevel: slog.LevelWarn, Driver: "sqlite3"}, tt.version, "surfsup")
			if logger == nil {
				t.Fatal("New() = nil")
			}
			if logger.Enabled(context.Background(), slog.LevelInfo) {
				t.Error("info enabled at warn level, want disabled")
			}
			if !logger.Enabled(context.Background(), slog.LevelError) {
				t.Error("error disabled at warn level, want enabled")
			}
		})
	}
}
