package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, FormatJSON, slog.LevelInfo)

	logger.Info("flow settled", Flow("backgroundFillFlow"), Kind("EmptyGenerationResult"),
		Error(errors.New("no media")))
	logger.Debug("dropped")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "easel", rec["service"])
	assert.Equal(t, "backgroundFillFlow", rec["flow"])
	assert.Equal(t, "EmptyGenerationResult", rec["kind"])
	assert.Equal(t, "no media", rec["error"])
	assert.NotContains(t, buf.String(), "dropped")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestErrorNil(t *testing.T) {
	assert.Equal(t, "", Error(nil).Value.String())
}
