// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Common errors that services can return.
var (
	// ErrInvalidIndex is returned when a queue or presentation index is out of bounds.
	ErrInvalidIndex = errors.New("invalid queue index")

	// ErrQueueEmpty is returned when navigation is attempted on an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrStaleEvent marks a media event for a source that has been superseded.
	ErrStaleEvent = errors.New("stale media event")

	// ErrPermutationInvariant marks a shuffle permutation that is not a bijection.
	// It indicates a programming error and is raised as a panic.
	ErrPermutationInvariant = errors.New("shuffle permutation is not a bijection")

	// ErrServiceStopped is returned for commands issued after shutdown.
	ErrServiceStopped = errors.New("player service stopped")

	// ErrInvalidVolume is returned when the volume is outside 0-100.
	ErrInvalidVolume = errors.New("invalid volume: must be between 0 and 100")

	// ErrInvalidRepeatMode is returned for an unknown repeat mode.
	ErrInvalidRepeatMode = errors.New("invalid repeat mode")

	// ErrNoTrackLoaded is returned when an operation needs a loaded song.
	ErrNoTrackLoaded = errors.New("no track loaded")

	// ErrInvalidPosition is returned when seeking outside the current song.
	ErrInvalidPosition = errors.New("invalid playback position")

	// ErrTrackMismatch is returned when a position request names another track.
	ErrTrackMismatch = errors.New("track id does not match current song")

	// ErrUnsupportedFormat is returned when an audio file format is not supported.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrFileNotFound is returned when a file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidFilePath is returned when a file path is invalid.
	ErrInvalidFilePath = errors.New("invalid file path")

	// ErrScanInProgress is returned when a second scan is started concurrently.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrScanCancelled is returned when a library scan is canceled.
	ErrScanCancelled = errors.New("scan cancelled")

	// ErrAudioUnavailable is returned when no audio output can be opened.
	ErrAudioUnavailable = errors.New("audio output unavailable")
)

// AudioEngineError represents an error from the audio engine.
// This wraps low-level audio library errors with additional context.
type AudioEngineError struct {
	Op      string // Operation that failed (e.g., "load", "play", "seek")
	Path    string // File path (if applicable)
	Message string // Error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *AudioEngineError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("audio engine %s failed for '%s': %s", e.Op, e.Path, e.Message)
	}
	return fmt.Sprintf("audio engine %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *AudioEngineError) Unwrap() error {
	return e.Err
}

// NewAudioEngineError creates a new AudioEngineError.
func NewAudioEngineError(op, path, message string, err error) *AudioEngineError {
	return &AudioEngineError{
		Op:      op,
		Path:    path,
		Message: message,
		Err:     err,
	}
}

// RepositoryError represents an error from a repository.
// This wraps persistence layer errors with additional context.
type RepositoryError struct {
	Op      string // Operation that failed (e.g., "save", "load")
	Type    string // Repository type (e.g., "preferences")
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s.%s failed: %s", e.Type, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError creates a new RepositoryError.
func NewRepositoryError(op, repoType, message string, err error) *RepositoryError {
	return &RepositoryError{
		Op:      op,
		Type:    repoType,
		Message: message,
		Err:     err,
	}
}

// ServiceError represents an error from a service layer operation.
type ServiceError struct {
	Service string // Service name (e.g., "PlayerService", "LibraryService")
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s.%s failed: %s", e.Service, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op, message string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
