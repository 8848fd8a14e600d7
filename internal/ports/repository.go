// Package ports define repository interfaces for data persistence abstraction.
package ports

import (
	"github.com/rhinomusic/rhino/internal/domain"
)

// PreferencesRepository handles the persistence of user preferences.
// The queue is never persisted; only settings that outlive a session are.
//
// Thread-safety: Implementations must be thread-safe.
type PreferencesRepository interface {
	// SaveVolume persists the volume level (0-100).
	SaveVolume(volume int) error

	// LoadVolume retrieves the saved volume level.
	// If no volume was saved, returns 100.
	LoadVolume() (int, error)

	// SaveRepeatMode persists the repeat mode.
	SaveRepeatMode(mode domain.RepeatMode) error

	// LoadRepeatMode retrieves the saved repeat mode.
	// If no mode was saved, returns domain.RepeatOff.
	LoadRepeatMode() (domain.RepeatMode, error)

	// SaveScanPaths persists the list of directories to scan for music.
	SaveScanPaths(paths []string) error

	// LoadScanPaths retrieves the saved scan paths.
	// If no paths were saved, returns an empty slice (not an error).
	LoadScanPaths() ([]string, error)

	// Clear removes all saved preferences.
	Clear() error
}
