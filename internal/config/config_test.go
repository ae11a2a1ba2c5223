package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "localink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8888", cfg.Addr())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  host: 127.0.0.1
  port: 9000
worker:
  count: 2
  drop_unsupported: true
  request_timeout: 2s
defaults:
  tolerance: 2.5
log:
  level: debug
`)
	t.Setenv("LOCALINK_SERVER_PORT", "9100")
	t.Setenv("LOCALINK_DEFAULT_INTENSITY", "0.25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.Addr())
	assert.Equal(t, 2, cfg.Worker.Count)
	assert.True(t, cfg.Worker.DropUnsupported)
	assert.Equal(t, 2*time.Second, cfg.Worker.RequestTimeout)
	assert.Equal(t, 2.5, cfg.Defaults.Tolerance)
	assert.Equal(t, 0.25, cfg.Defaults.Intensity)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched sections keep their defaults
	assert.Equal(t, 64, cfg.Worker.QueueSize)
	assert.Equal(t, "/worker", cfg.Server.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "intensity above one", env: map[string]string{"LOCALINK_DEFAULT_INTENSITY": "1.5"}},
		{name: "negative tolerance", body: "defaults:\n  tolerance: -1\n"},
		{name: "no workers", body: "worker:\n  count: 0\n"},
		{name: "bad log level", env: map[string]string{"LOCALINK_LOG_LEVEL": "loud"}},
		{name: "relative path", body: "server:\n  path: worker\n"},
		{name: "malformed yaml", body: "server: [\n"},
		{name: "malformed env", env: map[string]string{"LOCALINK_WORKER_COUNT": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.body != "" {
				path = writeFile(t, tt.body)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))

	_, err = NewLogger(LogConfig{Level: "chatty"})
	assert.Error(t, err)
}
