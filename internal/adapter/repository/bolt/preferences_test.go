package bolt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/rhinomusic/rhino/internal/domain"
)

func openTestRepo(t *testing.T) (*PreferencesRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "rhino.db")
	repo, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func TestPreferencesRepository_Defaults(t *testing.T) {
	repo, _ := openTestRepo(t)

	volume, err := repo.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 100, volume)

	mode, err := repo.LoadRepeatMode()
	require.NoError(t, err)
	assert.Equal(t, domain.RepeatOff, mode)

	paths, err := repo.LoadScanPaths()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestPreferencesRepository_PersistsAcrossReopen(t *testing.T) {
	repo, path := openTestRepo(t)

	require.NoError(t, repo.SaveVolume(35))
	require.NoError(t, repo.SaveRepeatMode(domain.RepeatPlaylist))
	require.NoError(t, repo.SaveScanPaths([]string{"/music", "/more music"}))
	require.NoError(t, repo.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	volume, err := reopened.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 35, volume)

	mode, err := reopened.LoadRepeatMode()
	require.NoError(t, err)
	assert.Equal(t, domain.RepeatPlaylist, mode)

	paths, err := reopened.LoadScanPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/music", "/more music"}, paths)
}

func TestPreferencesRepository_CorruptValues(t *testing.T) {
	repo, _ := openTestRepo(t)

	require.NoError(t, repo.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketPreferences))
		if err := b.Put([]byte(keyVolume), []byte("loud")); err != nil {
			return err
		}
		return b.Put([]byte(keyRepeat), []byte("sideways"))
	}))

	volume, err := repo.LoadVolume()
	var repoErr *domain.RepositoryError
	assert.ErrorAs(t, err, &repoErr)
	assert.Equal(t, 100, volume)

	_, err = repo.LoadRepeatMode()
	assert.ErrorIs(t, err, domain.ErrInvalidRepeatMode)
}

func TestPreferencesRepository_Clear(t *testing.T) {
	repo, _ := openTestRepo(t)

	require.NoError(t, repo.SaveVolume(5))
	require.NoError(t, repo.Clear())

	volume, err := repo.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 100, volume)
}

func TestPreferencesRepository_RejectsInvalid(t *testing.T) {
	repo, _ := openTestRepo(t)

	assert.ErrorIs(t, repo.SaveVolume(120), domain.ErrInvalidVolume)
	assert.ErrorIs(t, repo.SaveRepeatMode(domain.RepeatMode(-3)), domain.ErrInvalidRepeatMode)
}
