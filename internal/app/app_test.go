package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinomusic/rhino/internal/config"
	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/logger"
	"github.com/rhinomusic/rhino/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("RHINO_REMOTE_ADDR", "")
	t.Setenv("RHINO_STORAGE_PATH", "")

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Audio.Engine = "mock"
	cfg.Storage.Path = config.MemoryStorage
	return cfg
}

func writeSongs(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("not really audio"), 0o644))
	}
	return dir
}

func TestNewApplication(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })

	app, err := NewApplication(testConfig(t), logger.NewTestLogger())
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.NotNil(t, app.Player())
	assert.NotNil(t, app.Library())
	assert.NotNil(t, app.Preferences())
	assert.NotNil(t, app.EventBus())
	assert.Empty(t, app.RemoteAddr())

	state := app.Player().State()
	assert.Equal(t, -1, state.Position)
	assert.Equal(t, 100, state.Volume)
	assert.Equal(t, domain.RepeatOff, state.Repeat)

	app.Shutdown()
	// Shutdown again should not panic
	app.Shutdown()
}

func TestApplication_RunQueuesPaths(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })

	dir := writeSongs(t, "b.mp3", "a.mp3", "notes.txt")
	app, err := NewApplication(testConfig(t), logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, []string{dir}) }()

	require.Eventually(t, func() bool {
		return app.Player().State().Status == domain.StatusPlaying
	}, time.Second, 10*time.Millisecond)

	state := app.Player().State()
	require.Len(t, state.Queue, 2)
	assert.Equal(t, "a", state.Queue[0].Title)
	assert.Equal(t, "b", state.Queue[1].Title)
	assert.Equal(t, 0, state.Position)

	app.Quit()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Quit")
	}
}

func TestApplication_RunQueuesLibraryWithoutPlaying(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })

	cfg := testConfig(t)
	cfg.Library.Paths = []string{writeSongs(t, "a.wav")}
	app, err := NewApplication(cfg, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, nil) }()

	require.Eventually(t, func() bool {
		return app.Player().QueueLength() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, -1, app.Player().State().Position)

	cancel()
	require.NoError(t, <-done)
}

func TestApplication_WatchAddsNewSongs(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })

	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Library.Paths = []string{dir}
	cfg.Library.Watch = true
	app, err := NewApplication(cfg, logger.NewTestLogger())
	require.NoError(t, err)
	app.Library().SetSettleDelay(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, nil) }()

	// The watcher is registered once Run reaches its wait
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.mp3"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return app.Player().QueueLength() == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	app.Shutdown()
}

func TestApplication_PreferencesSurviveRestart(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })

	cfg := testConfig(t)
	cfg.Storage.Path = filepath.Join(t.TempDir(), "prefs.db")

	first, err := NewApplication(cfg, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, first.Player().SetVolume(40))
	require.NoError(t, first.Player().SetRepeatMode(domain.RepeatSong))
	first.Shutdown()

	second, err := NewApplication(cfg, logger.NewTestLogger())
	require.NoError(t, err)
	defer second.Shutdown()

	state := second.Player().State()
	assert.Equal(t, 40, state.Volume)
	assert.Equal(t, domain.RepeatSong, state.Repeat)
}

func TestApplication_InvalidSurfaceSettings(t *testing.T) {
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })

	cfg := testConfig(t)
	cfg.Surfaces = []config.SurfaceConfig{{
		Type:     config.SurfaceRemote,
		Enabled:  true,
		Settings: map[string]any{"bogus": true},
	}}

	_, err := NewApplication(cfg, logger.NewTestLogger())
	assert.Error(t, err)
}

func TestVersionInfo(t *testing.T) {
	v := VersionInfo{Version: "dev", GitCommit: "abc", BuildTime: "now"}
	assert.Equal(t, "dev", v.String())
	assert.Equal(t, "Rhino dev (commit: abc, built: now)", v.FullString())

	v.GitTag = "v1.2.0"
	assert.Equal(t, "v1.2.0", v.String())
}
