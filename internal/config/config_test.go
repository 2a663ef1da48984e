package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REDIS_URI", "redis://localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisURI)
	assert.Equal(t, "memory", cfg.StatusBackend)
	assert.Equal(t, 72*time.Hour, cfg.StatusTTL)
	assert.Equal(t, 256, cfg.WS.SendBuffer)
	assert.Equal(t, 10*time.Second, cfg.Push.Timeout)
	assert.False(t, cfg.Push.IsEnabled())
	assert.True(t, cfg.UsesDefaultSecret())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STATUS_BACKEND", "redis")
	t.Setenv("WS_EVENTS_PER_SECOND", "5")
	t.Setenv("PUSH_ENDPOINT", "https://push.example.com/send")
	t.Setenv("PUSH_MAX_RETRIES", "2")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.StatusBackend)
	assert.Equal(t, 5.0, cfg.WS.EventsPerSecond)
	assert.True(t, cfg.Push.IsEnabled())
	assert.Equal(t, uint(2), cfg.Push.MaxRetries)
	assert.False(t, cfg.UsesDefaultSecret())
}

func TestLoad_RejectsUnknownStatusBackend(t *testing.T) {
	t.Setenv("STATUS_BACKEND", "etcd")

	_, err := Load()
	assert.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		assert.Equal(t, tt.want, cfg.SlogLevel(), tt.in)
	}
}
