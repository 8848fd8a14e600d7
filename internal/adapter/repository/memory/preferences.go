// Package memory provides in-process repository implementations.
// Nothing survives a restart; used in tests and when no storage path is configured.
package memory

import (
	"slices"
	"sync"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

// PreferencesRepository implements ports.PreferencesRepository in memory.
//
// Thread-safe: All operations protected by sync.RWMutex.
type PreferencesRepository struct {
	volume    *int
	repeat    *domain.RepeatMode
	scanPaths []string
	mu        sync.RWMutex
}

// NewPreferencesRepository creates an empty preferences repository.
func NewPreferencesRepository() *PreferencesRepository {
	return &PreferencesRepository{}
}

// SaveVolume persists the volume level.
func (r *PreferencesRepository) SaveVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return domain.NewRepositoryError("save", "preferences", "volume out of range", domain.ErrInvalidVolume)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = &volume
	return nil
}

// LoadVolume retrieves the saved volume level, 100 if none.
func (r *PreferencesRepository) LoadVolume() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.volume == nil {
		return 100, nil
	}
	return *r.volume, nil
}

// SaveRepeatMode persists the repeat mode.
func (r *PreferencesRepository) SaveRepeatMode(mode domain.RepeatMode) error {
	if !mode.Valid() {
		return domain.NewRepositoryError("save", "preferences", "unknown repeat mode", domain.ErrInvalidRepeatMode)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repeat = &mode
	return nil
}

// LoadRepeatMode retrieves the saved repeat mode, RepeatOff if none.
func (r *PreferencesRepository) LoadRepeatMode() (domain.RepeatMode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.repeat == nil {
		return domain.RepeatOff, nil
	}
	return *r.repeat, nil
}

// SaveScanPaths persists the scan paths.
func (r *PreferencesRepository) SaveScanPaths(paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanPaths = slices.Clone(paths)
	return nil
}

// LoadScanPaths retrieves the saved scan paths.
func (r *PreferencesRepository) LoadScanPaths() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.scanPaths == nil {
		return []string{}, nil
	}
	return slices.Clone(r.scanPaths), nil
}

// Clear removes all saved preferences.
func (r *PreferencesRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = nil
	r.repeat = nil
	r.scanPaths = nil
	return nil
}

var _ ports.PreferencesRepository = (*PreferencesRepository)(nil)
