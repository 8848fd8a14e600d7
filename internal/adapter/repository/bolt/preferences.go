// Package bolt provides repositories backed by a bbolt database file.
package bolt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

const (
	// BucketPreferences holds one key per preference
	BucketPreferences = "preferences"

	keyVolume    = "volume"
	keyRepeat    = "repeat"
	keyScanPaths = "scan_paths"
)

// PreferencesRepository implements ports.PreferencesRepository on a bbolt file.
//
// Thread-safe: bbolt serializes writers and allows concurrent readers.
type PreferencesRepository struct {
	db *bolt.DB
}

// Open opens (creating if needed) the database at path and initializes its buckets.
func Open(path string) (*PreferencesRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, domain.NewRepositoryError("open", "preferences", "create directory", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, domain.NewRepositoryError("open", "preferences", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketPreferences))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, domain.NewRepositoryError("open", "preferences", "create buckets", err)
	}

	return &PreferencesRepository{db: db}, nil
}

// Close closes the database file.
func (r *PreferencesRepository) Close() error {
	return r.db.Close()
}

// SaveVolume persists the volume level.
func (r *PreferencesRepository) SaveVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return domain.NewRepositoryError("save", "preferences", "volume out of range", domain.ErrInvalidVolume)
	}
	return r.put(keyVolume, []byte(strconv.Itoa(volume)))
}

// LoadVolume retrieves the saved volume level, 100 if none.
func (r *PreferencesRepository) LoadVolume() (int, error) {
	raw, err := r.get(keyVolume)
	if err != nil || raw == nil {
		return 100, err
	}
	v, err := strconv.Atoi(string(raw))
	if err != nil || v < 0 || v > 100 {
		return 100, domain.NewRepositoryError("load", "preferences", "corrupt volume", errors.Newf("value %q", raw))
	}
	return v, nil
}

// SaveRepeatMode persists the repeat mode by name.
func (r *PreferencesRepository) SaveRepeatMode(mode domain.RepeatMode) error {
	if !mode.Valid() {
		return domain.NewRepositoryError("save", "preferences", "unknown repeat mode", domain.ErrInvalidRepeatMode)
	}
	return r.put(keyRepeat, []byte(mode.String()))
}

// LoadRepeatMode retrieves the saved repeat mode, RepeatOff if none.
func (r *PreferencesRepository) LoadRepeatMode() (domain.RepeatMode, error) {
	raw, err := r.get(keyRepeat)
	if err != nil || raw == nil {
		return domain.RepeatOff, err
	}
	mode, err := domain.ParseRepeatMode(string(raw))
	if err != nil {
		return domain.RepeatOff, domain.NewRepositoryError("load", "preferences", "corrupt repeat mode", err)
	}
	return mode, nil
}

// SaveScanPaths persists the scan paths as a JSON array.
func (r *PreferencesRepository) SaveScanPaths(paths []string) error {
	if paths == nil {
		paths = []string{}
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return domain.NewRepositoryError("save", "preferences", "encode scan paths", err)
	}
	return r.put(keyScanPaths, data)
}

// LoadScanPaths retrieves the saved scan paths.
func (r *PreferencesRepository) LoadScanPaths() ([]string, error) {
	raw, err := r.get(keyScanPaths)
	if err != nil || raw == nil {
		return []string{}, err
	}
	var paths []string
	if err := json.Unmarshal(raw, &paths); err != nil {
		return []string{}, domain.NewRepositoryError("load", "preferences", "decode scan paths", err)
	}
	return paths, nil
}

// Clear removes all saved preferences.
func (r *PreferencesRepository) Clear() error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(BucketPreferences)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(BucketPreferences))
		return err
	})
	if err != nil {
		return domain.NewRepositoryError("clear", "preferences", "reset bucket", err)
	}
	return nil
}

func (r *PreferencesRepository) put(key string, value []byte) error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketPreferences)).Put([]byte(key), value)
	})
	if err != nil {
		return domain.NewRepositoryError("save", "preferences", key, err)
	}
	return nil
}

// get returns a copy of the stored value, nil if absent.
func (r *PreferencesRepository) get(key string) ([]byte, error) {
	var out []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(BucketPreferences)).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewRepositoryError("load", "preferences", key, err)
	}
	return out, nil
}

var _ ports.PreferencesRepository = (*PreferencesRepository)(nil)
