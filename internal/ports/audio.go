// Package ports define interfaces for dependency inversion.
// These interfaces allow the core business logic to remain independent of external frameworks.
package ports

import (
	"time"

	"github.com/rhinomusic/rhino/internal/domain"
)

// MediaEngine is the interface for audio playback engines.
// The player never decodes audio itself; it requests sources and reacts to the
// status reports the engine emits on Events.
//
// Requests are fire-and-forget: SetSource returns once the request is accepted and
// the outcome arrives later as a MediaSourceLoaded or MediaLoadFailed event carrying
// the same token. Events for a given source must be delivered in the order they occur.
//
// Implementations must be thread-safe as they may be called from multiple goroutines.
type MediaEngine interface {
	// SetSource replaces the current source. Any playing source is stopped.
	// An empty FileReference clears the source and yields a MediaNoSource event.
	//
	// Returns an error only if the request cannot be accepted at all.
	SetSource(src domain.Source) error

	// Play starts or resumes playback of the current source.
	Play() error

	// Pause pauses playback, preserving the position.
	Pause() error

	// Stop halts playback and rewinds to the start of the source.
	Stop() error

	// Seek moves the playback position.
	// The position is clamped to [0, Duration].
	Seek(position time.Duration) error

	// Position returns the current playback position.
	Position() time.Duration

	// Duration returns the length of the current source, zero if unknown or none.
	Duration() time.Duration

	// SetVolume sets the output volume, 0 (silent) to 100 (full).
	SetVolume(volume int) error

	// Events returns the channel of status reports.
	// The channel is closed by Close.
	Events() <-chan domain.MediaEvent

	// Close releases all engine resources.
	Close() error
}

// MetadataReader extracts song metadata from audio files.
type MetadataReader interface {
	// ReadSong builds a Song for the file at path.
	// Missing tags fall back to the file name.
	ReadSong(path string) (domain.Song, error)
}
