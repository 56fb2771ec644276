// Package logger_test contains tests for the logger package
package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/phrazzld/genserve/internal/config"
	"github.com/phrazzld/genserve/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"Warning", slog.LevelWarn, true},
		{" error ", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := logger.ParseLevel(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	buf := &logger.TestLogBuffer{}
	log := logger.New(buf, "warn")

	log.Info("hidden message")
	log.Warn("visible message", "key", "value")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible message", entries[0]["msg"])
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "value", entries[0]["key"])
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	buf := &logger.TestLogBuffer{}
	log := logger.New(buf, "chatty")

	log.Debug("debug message")
	log.Info("info message")

	logger.AssertLogContains(t, buf, "invalid log level configured")
	logger.AssertLogContains(t, buf, "info message")
	assert.NotContains(t, buf.String(), "debug message")
}

func TestSetup_SetsDefault(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	log, err := logger.Setup(config.ServerConfig{LogLevel: "debug"})

	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Same(t, log, slog.Default())
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestContextLogger(t *testing.T) {
	log, buf := logger.NewTestLogger(t)

	_, ok := logger.FromContext(context.Background())
	assert.False(t, ok, "empty context carries no logger")
	assert.Same(t, slog.Default(), logger.FromContextOrDefault(context.Background()))

	ctx := logger.WithLogger(context.Background(), log.With("request_id", "req-1"))
	got, ok := logger.FromContext(ctx)
	require.True(t, ok)

	got.Info("scoped message")
	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0]["request_id"])
}
