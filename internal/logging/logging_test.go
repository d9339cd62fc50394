// ABOUTME: Tests for logger construction and the color handler
// ABOUTME: Verifies level filtering, JSON output and attribute rendering

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flareos/flareforge/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "store").Info("cache written", "domain", "memory")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cache written", entry["msg"])
	assert.Equal(t, "store", entry["component"])
	assert.Equal(t, "memory", entry["domain"])
}

func TestNew_ColorText(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("filtered out")
	logger.With("component", "localfirst").WithGroup("sync").Warn("remote unreachable", "domain", "chats")

	out := buf.String()
	assert.NotContains(t, out, "filtered out")
	assert.Contains(t, out, "WRN remote unreachable")
	assert.Contains(t, out, "component=localfirst")
	assert.Contains(t, out, "sync.domain=chats")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(t.Context(), slog.LevelError))
}
