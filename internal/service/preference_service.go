// Package service provides business logic for the Rhino application.
package service

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

// PreferenceService caches user preferences and persists them through a repository.
// Once attached to the event bus it records volume and repeat mode changes
// published by the player. The queue is never persisted.
// All operations are thread-safe via sync.RWMutex.
type PreferenceService struct {
	// Dependencies (injected)
	logger     zerolog.Logger
	repository ports.PreferencesRepository
	bus        ports.EventBus

	// Cached preferences
	volume    int
	repeat    domain.RepeatMode
	scanPaths []string

	subs []domain.SubscriptionID

	// Concurrency control
	mu sync.RWMutex
}

// NewPreferenceService creates a new preference service and loads the cache.
func NewPreferenceService(
	logger zerolog.Logger,
	repository ports.PreferencesRepository,
	bus ports.EventBus,
) *PreferenceService {
	s := &PreferenceService{
		logger:     logger.With().Str("service", "preferences").Logger(),
		repository: repository,
		bus:        bus,
		volume:     100,
		repeat:     domain.RepeatOff,
	}

	s.loadPreferences()
	s.logger.Debug().Int("volume", s.volume).Stringer("repeat", s.repeat).Msg("preference service initialized")

	return s
}

// loadPreferences loads all preferences from the repository into the cache.
// Unreadable values keep their defaults.
func (s *PreferenceService) loadPreferences() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vol, err := s.repository.LoadVolume(); err == nil {
		s.volume = vol
	} else {
		s.logger.Warn().Err(err).Msg("failed to load volume")
	}

	if mode, err := s.repository.LoadRepeatMode(); err == nil {
		s.repeat = mode
	} else {
		s.logger.Warn().Err(err).Msg("failed to load repeat mode")
	}

	if paths, err := s.repository.LoadScanPaths(); err == nil {
		s.scanPaths = paths
	} else {
		s.logger.Warn().Err(err).Msg("failed to load scan paths")
	}
}

// Attach subscribes to player events so changes are persisted as they happen.
func (s *PreferenceService) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs = append(s.subs,
		s.bus.Subscribe(domain.EventVolumeChanged, func(e domain.Event) {
			if err := s.SetVolume(e.(domain.VolumeChangedEvent).Volume); err != nil {
				s.logger.Warn().Err(err).Msg("failed to persist volume")
			}
		}),
		s.bus.Subscribe(domain.EventRepeatModeChanged, func(e domain.Event) {
			if err := s.SetRepeatMode(e.(domain.RepeatModeChangedEvent).Mode); err != nil {
				s.logger.Warn().Err(err).Msg("failed to persist repeat mode")
			}
		}),
	)
}

// Volume returns the saved volume (0-100).
func (s *PreferenceService) Volume() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// SetVolume saves the volume preference (0-100).
func (s *PreferenceService) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return errors.Wrapf(domain.ErrInvalidVolume, "%d", volume)
	}

	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()

	return s.repository.SaveVolume(volume)
}

// RepeatMode returns the saved repeat mode.
func (s *PreferenceService) RepeatMode() domain.RepeatMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repeat
}

// SetRepeatMode saves the repeat mode preference.
func (s *PreferenceService) SetRepeatMode(mode domain.RepeatMode) error {
	if !mode.Valid() {
		return errors.Wrapf(domain.ErrInvalidRepeatMode, "%d", int(mode))
	}

	s.mu.Lock()
	s.repeat = mode
	s.mu.Unlock()

	return s.repository.SaveRepeatMode(mode)
}

// ScanPaths returns the saved library folders.
func (s *PreferenceService) ScanPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.scanPaths)
}

// SetScanPaths saves the library folders.
func (s *PreferenceService) SetScanPaths(paths []string) error {
	s.mu.Lock()
	s.scanPaths = slices.Clone(paths)
	s.mu.Unlock()

	return s.repository.SaveScanPaths(paths)
}

// ResetToDefaults clears the repository and restores default values.
func (s *PreferenceService) ResetToDefaults() error {
	s.mu.Lock()
	s.volume = 100
	s.repeat = domain.RepeatOff
	s.scanPaths = nil
	s.mu.Unlock()

	return s.repository.Clear()
}

// Shutdown detaches from the event bus.
func (s *PreferenceService) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.subs {
		s.bus.Unsubscribe(id)
	}
	s.subs = nil
	return nil
}
