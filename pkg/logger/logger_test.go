package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"})
			require.NotNil(t, l)
			assert.Equal(t, tt.wantLevel, zerolog.GlobalLevel())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // Default
		{"", zerolog.InfoLevel},        // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &config.Config{Env: "production", LogLevel: "debug", LogFormat: "json"})

	l.Component("pipeline").
		WithFields(map[string]interface{}{"business_id": "b-1", "rows": 8}).
		WithError(errors.New("degenerate input")).
		Error("Pipeline stage failed")

	entry := decode(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "Pipeline stage failed", entry["message"])
	assert.Equal(t, "salescast", entry["service"])
	assert.Equal(t, "production", entry["env"])
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "b-1", entry["business_id"])
	assert.Equal(t, float64(8), entry["rows"])
	assert.Equal(t, "degenerate input", entry["error"])
}

func TestLogger_FormattedMethods(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"})

	l.WithField("run_id", "r1").Infof("forecast %d weeks", 12)
	entry := decode(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "forecast 12 weeks", entry["message"])
	assert.Equal(t, "r1", entry["run_id"])
}

func TestNop_DiscardsOutput(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	l.WithError(errors.New("x")).Error("nothing")
	assert.Equal(t, zerolog.Disabled, l.Zerolog().GetLevel())
}
