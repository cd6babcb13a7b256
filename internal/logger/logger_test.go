package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONLevelFiltering(t *testing.T) {
	Init(Options{Level: "warn", Format: "json"})
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("dropped %d", 1)
	Warn("kept %s", "warning")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept warning", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
}

func TestWithFields(t *testing.T) {
	Init(Options{Level: "debug", Format: "json"})
	var buf bytes.Buffer
	SetOutput(&buf)

	WithFields(map[string]interface{}{"symbol": "BTC/USDT"}).Info("alert fired")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "BTC/USDT", entry["symbol"])
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	Init(Options{Level: "loud", Format: "text"})
	var buf bytes.Buffer
	SetOutput(&buf)

	Debug("hidden")
	Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
