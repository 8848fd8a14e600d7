package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinomusic/rhino/internal/domain"
)

func TestPreferencesRepository_Defaults(t *testing.T) {
	repo := NewPreferencesRepository()

	volume, err := repo.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 100, volume)

	mode, err := repo.LoadRepeatMode()
	require.NoError(t, err)
	assert.Equal(t, domain.RepeatOff, mode)

	paths, err := repo.LoadScanPaths()
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.NotNil(t, paths)
}

func TestPreferencesRepository_SaveAndLoad(t *testing.T) {
	repo := NewPreferencesRepository()

	require.NoError(t, repo.SaveVolume(0))
	require.NoError(t, repo.SaveRepeatMode(domain.RepeatSong))
	require.NoError(t, repo.SaveScanPaths([]string{"/music"}))

	volume, err := repo.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 0, volume)

	mode, err := repo.LoadRepeatMode()
	require.NoError(t, err)
	assert.Equal(t, domain.RepeatSong, mode)

	paths, err := repo.LoadScanPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/music"}, paths)
}

func TestPreferencesRepository_RejectsInvalid(t *testing.T) {
	repo := NewPreferencesRepository()

	assert.ErrorIs(t, repo.SaveVolume(101), domain.ErrInvalidVolume)
	assert.ErrorIs(t, repo.SaveRepeatMode(domain.RepeatMode(9)), domain.ErrInvalidRepeatMode)

	var repoErr *domain.RepositoryError
	assert.ErrorAs(t, repo.SaveVolume(-1), &repoErr)
}

func TestPreferencesRepository_Clear(t *testing.T) {
	repo := NewPreferencesRepository()
	require.NoError(t, repo.SaveVolume(10))
	require.NoError(t, repo.Clear())

	volume, err := repo.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 100, volume)
}
