package mpris

import (
	"math"
	"net/url"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"

	"github.com/rhinomusic/rhino/internal/domain"
)

// LoopStatus values.
const (
	LoopNone     = "None"
	LoopTrack    = "Track"
	LoopPlaylist = "Playlist"
)

// NoTrack is the track id reported when nothing is loaded.
const NoTrack = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")

// LoopStatus maps a repeat mode onto the protocol's three loop states.
// Shuffle repeat loops the whole queue, so it reads as Playlist.
func LoopStatus(mode domain.RepeatMode) string {
	switch mode {
	case domain.RepeatSong:
		return LoopTrack
	case domain.RepeatPlaylist, domain.RepeatShuffle:
		return LoopPlaylist
	default:
		return LoopNone
	}
}

// RepeatMode maps a requested loop status back onto a repeat mode. current
// keeps Shuffle repeat when a client writes back the Playlist value it read.
func RepeatMode(status string, current domain.RepeatMode) (domain.RepeatMode, error) {
	switch status {
	case LoopNone:
		return domain.RepeatOff, nil
	case LoopTrack:
		return domain.RepeatSong, nil
	case LoopPlaylist:
		if current == domain.RepeatShuffle {
			return current, nil
		}
		return domain.RepeatPlaylist, nil
	}
	return domain.RepeatOff, errors.Wrapf(domain.ErrInvalidRepeatMode, "loop status %q", status)
}

// PlaybackStatus returns the protocol name of a playback status.
func PlaybackStatus(status domain.PlaybackStatus) string {
	switch status {
	case domain.StatusPlaying:
		return "Playing"
	case domain.StatusPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// Volume converts 0-100 to the protocol's 0.0-1.0 range.
func Volume(volume int) float64 {
	return float64(volume) / 100
}

// VolumePercent converts a protocol volume to 0-100. Values above 1.0 are
// clamped and negative values mean silence.
func VolumePercent(v float64) (int, error) {
	if math.IsNaN(v) {
		return 0, errors.Wrap(domain.ErrInvalidVolume, "NaN")
	}
	return int(math.Round(min(max(v, 0), 1) * 100)), nil
}

// Micros converts a duration to the protocol's microsecond positions.
func Micros(d time.Duration) int64 {
	return d.Microseconds()
}

// FromMicros converts a protocol position to a duration.
func FromMicros(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// Metadata builds the Metadata property for a song.
func Metadata(song domain.Song) map[string]dbus.Variant {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath(domain.TrackID(song))),
		"xesam:title":   dbus.MakeVariant(song.Title),
		"xesam:album":   dbus.MakeVariant(song.Album),
		"xesam:artist":  dbus.MakeVariant([]string{song.Artist}),
		"xesam:url":     dbus.MakeVariant(fileURL(song.FileReference)),
	}
	if song.AlbumArtist != "" {
		m["xesam:albumArtist"] = dbus.MakeVariant([]string{song.AlbumArtist})
	}
	if song.Track > 0 {
		m["xesam:trackNumber"] = dbus.MakeVariant(int32(song.Track))
	}
	if song.Duration > 0 {
		m["mpris:length"] = dbus.MakeVariant(Micros(song.Duration))
	}
	if song.ImagePath != "" {
		m["mpris:artUrl"] = dbus.MakeVariant(fileURL(song.ImagePath))
	}
	return m
}

// NoTrackMetadata is the Metadata property while nothing is loaded.
func NoTrackMetadata() map[string]dbus.Variant {
	return map[string]dbus.Variant{"mpris:trackid": dbus.MakeVariant(NoTrack)}
}

// PathFromURI returns the local path of a file:// URI.
func PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.Wrapf(domain.ErrInvalidFilePath, "%s", uri)
	}
	if u.Scheme != "file" || u.Path == "" {
		return "", errors.Wrapf(domain.ErrInvalidFilePath, "unsupported uri %s", uri)
	}
	return filepath.FromSlash(u.Path), nil
}

func fileURL(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
