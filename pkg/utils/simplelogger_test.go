package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	// До инициализации вызовы безопасны.
	Info("dropped")

	dir := t.TempDir()
	require.NoError(t, InitLogger(dir))
	t.Cleanup(Close)

	path := LogPath()
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "pi-llama-"))

	Info("Message processed", "iterations", 2, "outcome", "final_answer")
	Debug("hidden")
	SetDebug(true)
	Debug("visible", "tokens", 7)
	SetDebug(false)
	Warn("odd keyvals", "dangling")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)

	assert.Contains(t, out, "INFO: Message processed iterations=2 outcome=final_answer")
	assert.Contains(t, out, "DEBUG: visible tokens=7")
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "WARN: odd keyvals\n")
}
