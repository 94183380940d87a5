package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	l := New("development", Options{FilePath: path, MaxSizeMB: 1, MaxBackups: 1})

	l.WithFields("component", "test").Info("hello")
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "hello")
	assert.Contains(t, string(raw), "component=test")
}

func TestClose_WithoutFile(t *testing.T) {
	assert.NoError(t, New("production").Close())
}
