package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSON_MergesFieldsAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Info, Format: FormatJSON, App: "clinical-access", Output: &buf})

	l.Debug("hidden", nil)
	l.With(map[string]any{"component": "emrsync"}).Warn("emr call failed", map[string]any{
		"op":  "fetch_record",
		"err": errors.New("boom"),
		"":    "ignored",
	})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "emr call failed", entry["message"])
	assert.Equal(t, "clinical-access", entry["app"])
	assert.Equal(t, "emrsync", entry["component"])
	assert.Equal(t, "fetch_record", entry["op"])
	assert.Equal(t, "boom", entry["err"])
	_, hasEmpty := entry[""]
	assert.False(t, hasEmpty)
}

func TestParseLevelAndFormat(t *testing.T) {
	assert.Equal(t, Debug, ParseLevel("DEBUG"))
	assert.Equal(t, Warn, ParseLevel("warning"))
	assert.Equal(t, Info, ParseLevel("nonsense"))
	assert.Equal(t, FormatJSON, ParseFormat(" json "))
	assert.Equal(t, FormatText, ParseFormat(""))
}
