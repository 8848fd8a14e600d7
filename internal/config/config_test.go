package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"RHINO_LOG_LEVEL", "RHINO_STORAGE_PATH", "RHINO_REMOTE_ADDR"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rhino.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "beep", cfg.Audio.Engine)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 100*time.Millisecond, cfg.Buffer())
	assert.Equal(t, 333*time.Millisecond, cfg.ProgressInterval())
	assert.InDelta(t, 1.0, cfg.Player.RestartThresholdPercent, 1e-9)
	assert.Equal(t, DefaultStoragePath(), cfg.Storage.Path)
	assert.Empty(t, cfg.Surfaces)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
log:
  level: DEBUG
  format: json
audio:
  engine: mock
player:
  restart_threshold_percent: 5
library:
  paths: [/music]
  watch: true
storage:
  path: ":memory:"
surfaces:
  - type: mpris
    enabled: true
    settings:
      identity: Rhino Test
  - type: remote
    enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, zerolog.DebugLevel, cfg.Logger().Level)
	assert.Equal(t, "json", cfg.Logger().Format)
	assert.Equal(t, "mock", cfg.Audio.Engine)
	assert.InDelta(t, 5.0, cfg.Player.RestartThresholdPercent, 1e-9)
	assert.Equal(t, []string{"/music"}, cfg.Library.Paths)
	assert.True(t, cfg.Library.Watch)
	assert.Equal(t, MemoryStorage, cfg.Storage.Path)

	mpris, ok, err := cfg.MPRIS()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Rhino Test", mpris.Identity)

	_, ok, err = cfg.Remote()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RHINO_LOG_LEVEL", "warn")
	t.Setenv("RHINO_STORAGE_PATH", "/tmp/prefs.db")
	t.Setenv("RHINO_REMOTE_ADDR", "0.0.0.0:9000")

	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/prefs.db", cfg.Storage.Path)

	remote, ok, err := cfg.Remote()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:9000", remote.Addr)
	assert.Equal(t, []string{"http://localhost*", "http://127.0.0.1*"}, remote.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "log: [unterminated"},
		{"unknown engine", "audio:\n  engine: alsa\n"},
		{"threshold out of range", "player:\n  restart_threshold_percent: 150\n"},
		{"bad log level", "log:\n  level: chatty\n"},
		{"unknown surface", "surfaces:\n  - type: telnet\n    enabled: true\n"},
		{"bad remote addr", "surfaces:\n  - type: remote\n    enabled: true\n    settings:\n      addr: nowhere\n"},
		{"unknown setting", "surfaces:\n  - type: mpris\n    enabled: true\n    settings:\n      colour: blue\n"},
		{"bad bus name", "surfaces:\n  - type: mpris\n    enabled: true\n    settings:\n      bus_name: com.example.player\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
