package ports

import (
	"time"

	"github.com/rhinomusic/rhino/internal/domain"
)

// PlayerControl is the command and query surface of the playback controller.
// Control surfaces (desktop remote control, network remote) drive the player
// through it and mirror its state from the event bus.
//
// Commands on invalid input are ineffective and return an error wrapping a
// domain sentinel; player state is left untouched in that case.
type PlayerControl interface {
	PlayPause() error
	Play() error
	Pause() error
	Stop() error
	Next() error
	Prev() error

	// PlaySong loads the song at a presentation index regardless of play state.
	PlaySong(presentation int) error

	// Seek moves the playback position of the current song.
	Seek(position time.Duration) error

	// SetPositionIfTrackMatches seeks only when trackID names the current song.
	SetPositionIfTrackMatches(trackID string, position time.Duration) error

	SetVolume(volume int) error
	SetRepeatMode(mode domain.RepeatMode) error
	CycleRepeat() (domain.RepeatMode, error)
	SetShuffle(enabled bool) error

	// AddSongs appends songs; when playFirst is set the first one starts.
	AddSongs(songs []domain.Song, playFirst bool) error
	InsertNext(song domain.Song) error

	// RemoveSongs removes songs by presentation index.
	RemoveSongs(presentation []int) error
	MoveSong(from, to int) error
	ClearQueue() error

	// State returns a consistent snapshot. It never blocks on the player loop.
	State() domain.PlayerState
	Position() time.Duration
	Duration() time.Duration
}
