// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the Rhino music player.
package domain

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Song represents a single track as supplied by the library.
// Songs are values: the queue keeps its own copy and never refers back to the library.
type Song struct {
	// Artist is the performing artist name
	Artist string `json:"artist"`

	// AlbumArtist is the album-level artist, may differ from Artist on compilations
	AlbumArtist string `json:"albumArtist"`

	// Album is the album name
	Album string `json:"album"`

	// Title is the song title (from metadata or filename)
	Title string `json:"title"`

	// FileReference is the locator handed to the media engine
	FileReference string `json:"file"`

	// ImagePath is an optional path to cover art
	ImagePath string `json:"image,omitempty"`

	// Track is the track number on the album
	Track int `json:"track"`

	// Duration is the total length of the song, zero when unknown
	Duration time.Duration `json:"duration"`
}

// TrackIDPrefix is the object path namespace used for stable track identifiers.
const TrackIDPrefix = "/org/rhino/track/"

// TrackID derives a stable identifier for the song from its title and file reference.
// The result is a valid D-Bus object path.
func TrackID(s Song) string {
	return TrackIDPrefix + hex.EncodeToString([]byte(s.Title+"-"+s.FileReference))
}

// RepeatMode governs what happens when a song ends.
type RepeatMode int

const (
	// RepeatOff stops playback after the last song
	RepeatOff RepeatMode = iota

	// RepeatSong replays the current song
	RepeatSong

	// RepeatPlaylist wraps to the first song after the last one
	RepeatPlaylist

	// RepeatShuffle reshuffles the queue and keeps repeating it
	RepeatShuffle
)

// String returns a human-readable representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatSong:
		return "song"
	case RepeatPlaylist:
		return "playlist"
	case RepeatShuffle:
		return "shuffle"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the four known modes.
func (m RepeatMode) Valid() bool {
	return m >= RepeatOff && m <= RepeatShuffle
}

// ParseRepeatMode converts a textual mode name into a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "":
		return RepeatOff, nil
	case "song", "track", "one":
		return RepeatSong, nil
	case "playlist", "all":
		return RepeatPlaylist, nil
	case "shuffle":
		return RepeatShuffle, nil
	}
	return RepeatOff, errors.Wrapf(ErrInvalidRepeatMode, "%q", s)
}

// PlaybackStatus represents the current playback state.
type PlaybackStatus int

const (
	// StatusStopped indicates no source is loaded or playback was stopped
	StatusStopped PlaybackStatus = iota

	// StatusPlaying indicates playback is active
	StatusPlaying

	// StatusPaused indicates a source is loaded but not advancing
	StatusPaused
)

// String returns a human-readable representation of the playback status.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Source is a load request handed to the media engine.
// Token identifies the request; the engine echoes it on every event for this source.
// An empty FileReference clears the current source.
type Source struct {
	Token         uint64
	FileReference string
}

// MediaEventKind enumerates the status reports a media engine emits.
type MediaEventKind int

const (
	// MediaSourceLoaded reports that the requested source is ready to play
	MediaSourceLoaded MediaEventKind = iota + 1

	// MediaEndOfTrack reports that the source played to its end
	MediaEndOfTrack

	// MediaNoSource reports that the engine has no source
	MediaNoSource

	// MediaStateChanged reports a play/pause/stop transition
	MediaStateChanged

	// MediaLoadFailed reports that the requested source could not be opened
	MediaLoadFailed
)

// String returns a human-readable representation of the event kind.
func (k MediaEventKind) String() string {
	switch k {
	case MediaSourceLoaded:
		return "loaded"
	case MediaEndOfTrack:
		return "end-of-track"
	case MediaNoSource:
		return "no-source"
	case MediaStateChanged:
		return "state-changed"
	case MediaLoadFailed:
		return "load-failed"
	default:
		return "unknown"
	}
}

// MediaEvent is a status report from the media engine.
type MediaEvent struct {
	Kind  MediaEventKind
	Token uint64
	State PlaybackStatus // set for MediaStateChanged
	Err   error          // set for MediaLoadFailed
}

// PlayerState is an immutable snapshot of the playback controller.
type PlayerState struct {
	// Position is the canonical index of the current song, -1 if none
	Position int

	// Presentation is where the current song appears in Queue, -1 if none
	Presentation int

	// Current is the song at Position (zero value if none)
	Current Song

	// Status mirrors the last status reported by the media engine
	Status PlaybackStatus

	// Repeat is the active repeat mode
	Repeat RepeatMode

	// Shuffled is the shuffle flag
	Shuffled bool

	// Volume is the current volume level (0 to 100)
	Volume int

	// Queue holds the songs in presentation order
	Queue []Song
}

// Preferences contain persisted user settings.
// The queue itself is intentionally absent.
type Preferences struct {
	// Volume is the saved volume level (0 to 100)
	Volume int

	// Repeat is the saved repeat mode
	Repeat RepeatMode

	// ScanPaths are directories to scan for music
	ScanPaths []string
}

// ScanProgress represents the progress of a music library scan operation.
type ScanProgress struct {
	// CurrentFile is the file currently being scanned
	CurrentFile string

	// FilesScanned is the number of files processed so far
	FilesScanned int

	// TotalFiles is the total number of files to scan (may be -1 if unknown)
	TotalFiles int

	// SongsFound is the number of valid songs found
	SongsFound int
}

// Percentage returns the completion percentage (0-100), or -1 if total is unknown.
func (p ScanProgress) Percentage() float64 {
	if p.TotalFiles <= 0 {
		return -1
	}
	return float64(p.FilesScanned) / float64(p.TotalFiles) * 100.0
}
