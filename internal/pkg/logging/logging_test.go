package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/samirrijal/routekit/internal/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logging.ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNew_JSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "routekit-api", "info", "json")

	logger.Debug("hidden")
	logger.Info("session opened", "session_id", "s-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "routekit-api", entry["service"])
	assert.Equal(t, "session opened", entry["msg"])
	assert.Equal(t, "s-1", entry["session_id"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logging.New(&buf, "", "debug", "text").Debug("snap fallback")

	assert.Contains(t, buf.String(), "msg=\"snap fallback\"")
	assert.NotContains(t, buf.String(), "service=")
}
