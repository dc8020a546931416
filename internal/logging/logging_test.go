package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("prod", "info", &buf)
	logger.Debug("hidden")
	logger.Info("conversation loaded", "conversation_id", "conv_1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "conversation loaded", entry["msg"])
	assert.Equal(t, "conv_1", entry["conversation_id"])
}

func TestNew_DevWritesText(t *testing.T) {
	var buf bytes.Buffer
	New("dev", "debug", &buf).Debug("page loaded", "offset", 10)
	assert.Contains(t, buf.String(), "msg=\"page loaded\"")
	assert.Contains(t, buf.String(), "offset=10")
}
