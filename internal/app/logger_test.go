package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "staging", LogFormat: "json", LogLevel: "warn"})

	logger.Info("dropped")
	require.Zero(t, buf.Len())

	logger.Warn("kept")
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "kept", record["msg"])
	require.Equal(t, "staging", record["env"])
}

func TestLoadConfigRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := LoadConfig()
	require.Error(t, err)
}
