package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	log, err := New(path, "debug")
	require.NoError(t, err)
	log.Debug("sampled")
	log.Info("calibration loaded")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sampled")
	assert.Contains(t, string(data), "calibration loaded")
}

func TestNewLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	log, err := New(path, "warn")
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		level string
	}{
		{name: "bad level", path: "", level: "loud"},
		{name: "bad path", path: filepath.Join(t.TempDir(), "missing", "x.log"), level: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.path, tt.level)
			assert.Error(t, err)
		})
	}
}
