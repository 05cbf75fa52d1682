package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testcases := []struct {
		raw      string
		expected zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{" DEBUG ", zerolog.DebugLevel},
		{"trace", zerolog.TraceLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
	}

	for _, tc := range testcases {
		got, err := ParseLevel(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.expected, got, tc.raw)
	}

	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(Config{Level: "warn", JSON: true}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("stage", "host-receive").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "host-receive", entry["stage"])
	assert.Equal(t, "oscrelay", entry["app"])
	assert.NotContains(t, entry, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(Config{Level: "debug", NoColor: true}, &buf)
	require.NoError(t, err)

	logger.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")

	_, err = New(Config{Level: "nope"}, &buf)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogJSON, "not-a-bool")

	cfg := DefaultConfig()
	ApplyEnv(&cfg)

	assert.Equal(t, Config{Level: "debug", NoColor: true, Timestamp: false}, cfg)
}
