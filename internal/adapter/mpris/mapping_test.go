package mpris

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinomusic/rhino/internal/domain"
)

func TestLoopStatus(t *testing.T) {
	tests := []struct {
		mode domain.RepeatMode
		want string
	}{
		{domain.RepeatOff, LoopNone},
		{domain.RepeatSong, LoopTrack},
		{domain.RepeatPlaylist, LoopPlaylist},
		{domain.RepeatShuffle, LoopPlaylist},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LoopStatus(tt.mode))
		})
	}
}

func TestRepeatMode(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		current domain.RepeatMode
		want    domain.RepeatMode
	}{
		{"none", LoopNone, domain.RepeatSong, domain.RepeatOff},
		{"track", LoopTrack, domain.RepeatOff, domain.RepeatSong},
		{"playlist", LoopPlaylist, domain.RepeatOff, domain.RepeatPlaylist},
		{"playlist keeps shuffle", LoopPlaylist, domain.RepeatShuffle, domain.RepeatShuffle},
		{"none drops shuffle", LoopNone, domain.RepeatShuffle, domain.RepeatOff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RepeatMode(tt.status, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := RepeatMode("Forever", domain.RepeatOff)
	assert.True(t, errors.Is(err, domain.ErrInvalidRepeatMode))
}

func TestPlaybackStatus(t *testing.T) {
	assert.Equal(t, "Playing", PlaybackStatus(domain.StatusPlaying))
	assert.Equal(t, "Paused", PlaybackStatus(domain.StatusPaused))
	assert.Equal(t, "Stopped", PlaybackStatus(domain.StatusStopped))
}

func TestVolumeConversion(t *testing.T) {
	assert.InDelta(t, 0.42, Volume(42), 1e-9)

	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.5, 50},
		{0.333, 33},
		{1, 100},
		{1.7, 100},
		{-0.2, 0},
	}
	for _, tt := range tests {
		got, err := VolumePercent(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}
}

func TestMicros(t *testing.T) {
	assert.Equal(t, int64(1_500_000), Micros(1500*time.Millisecond))
	assert.Equal(t, 2*time.Second, FromMicros(2_000_000))
}

func TestMetadata(t *testing.T) {
	song := domain.Song{
		Title:         "Song",
		Artist:        "Artist",
		AlbumArtist:   "Various",
		Album:         "Album",
		FileReference: "/music/a.mp3",
		ImagePath:     "/music/cover.jpg",
		Track:         3,
		Duration:      90 * time.Second,
	}

	m := Metadata(song)
	assert.Equal(t, dbus.ObjectPath("/org/rhino/track/536f6e672d2f6d757369632f612e6d7033"), m["mpris:trackid"].Value())
	assert.Equal(t, "Song", m["xesam:title"].Value())
	assert.Equal(t, "Album", m["xesam:album"].Value())
	assert.Equal(t, []string{"Artist"}, m["xesam:artist"].Value())
	assert.Equal(t, []string{"Various"}, m["xesam:albumArtist"].Value())
	assert.Equal(t, int32(3), m["xesam:trackNumber"].Value())
	assert.Equal(t, int64(90_000_000), m["mpris:length"].Value())
	assert.Equal(t, "file:///music/cover.jpg", m["mpris:artUrl"].Value())
	assert.Equal(t, "file:///music/a.mp3", m["xesam:url"].Value())
	assert.True(t, m["mpris:trackid"].Value().(dbus.ObjectPath).IsValid())
}

func TestMetadata_OmitsUnknownFields(t *testing.T) {
	m := Metadata(domain.Song{Title: "x", FileReference: "/x.mp3"})
	assert.NotContains(t, m, "mpris:length")
	assert.NotContains(t, m, "mpris:artUrl")
	assert.NotContains(t, m, "xesam:trackNumber")

	assert.Equal(t, NoTrack, NoTrackMetadata()["mpris:trackid"].Value())
}

func TestPathFromURI(t *testing.T) {
	p, err := PathFromURI("file:///music/My%20Song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/music/My Song.mp3", p)

	_, err = PathFromURI("https://example.com/a.mp3")
	assert.True(t, errors.Is(err, domain.ErrInvalidFilePath))

	_, err = PathFromURI("file://")
	assert.True(t, errors.Is(err, domain.ErrInvalidFilePath))
}
