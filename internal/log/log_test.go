package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLevels(t *testing.T) {
	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"INFO", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l, err := build(Config{Level: tt.input, Format: "text"})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, l.GetLevel())
		})
	}
}

func TestBuildInvalidLevel(t *testing.T) {
	_, err := build(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestBuildInvalidFormat(t *testing.T) {
	_, err := build(Config{Level: "info", Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported log format")
}

func TestBuildFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netinspect.log")

	l, err := build(Config{
		Level:  "debug",
		Format: "json",
		Quiet:  true,
		File:   FileConfig{Enabled: true, Path: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	l.WithField("iface", "eth0").Info("session started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"iface":"eth0"`)
	assert.Contains(t, string(data), "session started")
}

func TestBuildFileOutputMissingPath(t *testing.T) {
	_, err := build(Config{Level: "info", File: FileConfig{Enabled: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")
}

func TestInitReplacesLogger(t *testing.T) {
	before := L()
	require.NoError(t, Init(Config{Level: "warn", Format: "text", Quiet: true}))
	after := L()

	assert.NotSame(t, before, after)
	l, ok := after.(*logrus.Logger)
	require.True(t, ok)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}
