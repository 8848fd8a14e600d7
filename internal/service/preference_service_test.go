package service

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinomusic/rhino/internal/adapter/eventbus"
	"github.com/rhinomusic/rhino/internal/adapter/repository/memory"
	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/logger"
)

var errDisk = errors.New("disk full")

// brokenRepository fails every call.
type brokenRepository struct{}

func (brokenRepository) SaveVolume(int) error { return errDisk }
func (brokenRepository) LoadVolume() (int, error) { return 0, errDisk }
func (brokenRepository) SaveRepeatMode(domain.RepeatMode) error { return errDisk }
func (brokenRepository) LoadRepeatMode() (domain.RepeatMode, error) { return 0, errDisk }
func (brokenRepository) SaveScanPaths([]string) error { return errDisk }
func (brokenRepository) LoadScanPaths() ([]string, error) { return nil, errDisk }
func (brokenRepository) Clear() error { return errDisk }

func newTestPreferenceService(t *testing.T) (*PreferenceService, *memory.PreferencesRepository, *eventbus.SyncEventBus) {
	t.Helper()
	log := logger.NewTestLogger()
	repo := memory.NewPreferencesRepository()
	bus := eventbus.NewSyncEventBus(log)
	service := NewPreferenceService(log, repo, bus)
	t.Cleanup(func() {
		_ = service.Shutdown()
		_ = bus.Close()
	})
	return service, repo, bus
}

func TestPreferenceService_Defaults(t *testing.T) {
	service, _, _ := newTestPreferenceService(t)

	assert.Equal(t, 100, service.Volume())
	assert.Equal(t, domain.RepeatOff, service.RepeatMode())
	assert.Empty(t, service.ScanPaths())
}

func TestPreferenceService_LoadsSavedValues(t *testing.T) {
	repo := memory.NewPreferencesRepository()
	require.NoError(t, repo.SaveVolume(35))
	require.NoError(t, repo.SaveRepeatMode(domain.RepeatSong))
	require.NoError(t, repo.SaveScanPaths([]string{"/music"}))

	service := NewPreferenceService(logger.NewTestLogger(), repo, eventbus.NewSyncEventBus(logger.NewTestLogger()))

	assert.Equal(t, 35, service.Volume())
	assert.Equal(t, domain.RepeatSong, service.RepeatMode())
	assert.Equal(t, []string{"/music"}, service.ScanPaths())
}

func TestPreferenceService_SetVolume(t *testing.T) {
	service, repo, _ := newTestPreferenceService(t)

	require.NoError(t, service.SetVolume(60))
	assert.Equal(t, 60, service.Volume())

	saved, err := repo.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 60, saved)

	assert.ErrorIs(t, service.SetVolume(101), domain.ErrInvalidVolume)
	assert.ErrorIs(t, service.SetVolume(-1), domain.ErrInvalidVolume)
	assert.Equal(t, 60, service.Volume())
}

func TestPreferenceService_SetRepeatMode(t *testing.T) {
	service, repo, _ := newTestPreferenceService(t)

	require.NoError(t, service.SetRepeatMode(domain.RepeatPlaylist))
	assert.Equal(t, domain.RepeatPlaylist, service.RepeatMode())

	saved, err := repo.LoadRepeatMode()
	require.NoError(t, err)
	assert.Equal(t, domain.RepeatPlaylist, saved)

	assert.ErrorIs(t, service.SetRepeatMode(domain.RepeatMode(9)), domain.ErrInvalidRepeatMode)
}

func TestPreferenceService_ScanPathsAreCopied(t *testing.T) {
	service, _, _ := newTestPreferenceService(t)

	paths := []string{"/a", "/b"}
	require.NoError(t, service.SetScanPaths(paths))
	paths[0] = "/changed"

	got := service.ScanPaths()
	assert.Equal(t, []string{"/a", "/b"}, got)
	got[1] = "/changed"
	assert.Equal(t, []string{"/a", "/b"}, service.ScanPaths())
}

func TestPreferenceService_AttachPersistsPlayerChanges(t *testing.T) {
	service, repo, bus := newTestPreferenceService(t)
	service.Attach()

	bus.Publish(domain.NewVolumeChangedEvent(25))
	bus.Publish(domain.NewRepeatModeChangedEvent(domain.RepeatSong))

	assert.Equal(t, 25, service.Volume())
	vol, err := repo.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 25, vol)

	mode, err := repo.LoadRepeatMode()
	require.NoError(t, err)
	assert.Equal(t, domain.RepeatSong, mode)

	// Detached services stop recording
	require.NoError(t, service.Shutdown())
	bus.Publish(domain.NewVolumeChangedEvent(80))
	assert.Equal(t, 25, service.Volume())
}

func TestPreferenceService_ResetToDefaults(t *testing.T) {
	service, repo, _ := newTestPreferenceService(t)
	require.NoError(t, service.SetVolume(10))
	require.NoError(t, service.SetScanPaths([]string{"/music"}))

	require.NoError(t, service.ResetToDefaults())
	assert.Equal(t, 100, service.Volume())
	assert.Empty(t, service.ScanPaths())

	vol, err := repo.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 100, vol)
}

func TestPreferenceService_RepositoryFailures(t *testing.T) {
	bus := eventbus.NewSyncEventBus(logger.NewTestLogger())
	service := NewPreferenceService(logger.NewTestLogger(), brokenRepository{}, bus)

	// Unreadable values keep their defaults
	assert.Equal(t, 100, service.Volume())
	assert.Equal(t, domain.RepeatOff, service.RepeatMode())

	assert.ErrorIs(t, service.SetVolume(50), errDisk)
	assert.ErrorIs(t, service.SetScanPaths([]string{"/x"}), errDisk)

	// Failed writes from events are logged, not fatal
	service.Attach()
	bus.Publish(domain.NewVolumeChangedEvent(20))
	assert.Equal(t, 20, service.Volume())
}
