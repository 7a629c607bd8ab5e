package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel("INFO")
		SetFormat("text")
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel("WARN")

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
}

func TestSetLevel_IgnoresUnknown(t *testing.T) {
	capture(t)
	SetLevel("ERROR")
	SetLevel("verbose")

	assert.False(t, Enabled(LevelWarn))
	assert.True(t, Enabled(LevelError))
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t)
	SetLevel("debug")
	SetFormat("json")

	Debug("upload %s done", "abc")

	var entry map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "upload abc done", entry["msg"])
	assert.NotEmpty(t, entry["time"])
}

func TestOpenOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	w, closeFn, err := OpenOutput(path)
	require.NoError(t, err)

	_, err = w.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}

func TestOpenOutput_StandardStreams(t *testing.T) {
	w, closeFn, err := OpenOutput("stderr")
	require.NoError(t, err)
	assert.Equal(t, os.Stderr, w)
	assert.NoError(t, closeFn())
}
