package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/couchcryptid/radar-feed/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Level(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warning", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: tt.level, LogFormat: "json"})
			ctx := context.Background()
			assert.Equal(t, tt.wantDebug, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.wantInfo, logger.Enabled(ctx, slog.LevelInfo))
			assert.Equal(t, tt.wantWarn, logger.Enabled(ctx, slog.LevelWarn))
		})
	}
}

func TestNewLogger_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := NewLogger(&config.Config{LogLevel: "info", LogFormat: "text"})
	assert.Same(t, logger, slog.Default())
}
