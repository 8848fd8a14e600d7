package domain

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepeatMode_String(t *testing.T) {
	tests := []struct {
		mode RepeatMode
		want string
	}{
		{RepeatOff, "off"},
		{RepeatSong, "song"},
		{RepeatPlaylist, "playlist"},
		{RepeatShuffle, "shuffle"},
		{RepeatMode(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.String())
		})
	}
}

func TestParseRepeatMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RepeatMode
		wantErr bool
	}{
		{"off", RepeatOff, false},
		{"None", RepeatOff, false},
		{"song", RepeatSong, false},
		{"Track", RepeatSong, false},
		{"playlist", RepeatPlaylist, false},
		{" all ", RepeatPlaylist, false},
		{"shuffle", RepeatShuffle, false},
		{"sideways", RepeatOff, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepeatMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRepeatMode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepeatMode_Valid(t *testing.T) {
	assert.True(t, RepeatOff.Valid())
	assert.True(t, RepeatShuffle.Valid())
	assert.False(t, RepeatMode(-1).Valid())
	assert.False(t, RepeatMode(4).Valid())
}

func TestTrackID(t *testing.T) {
	a := Song{Title: "Song", FileReference: "/music/a.mp3"}
	b := Song{Title: "Song", FileReference: "/music/b.mp3"}

	assert.Equal(t, TrackID(a), TrackID(a))
	assert.NotEqual(t, TrackID(a), TrackID(b))
	assert.Equal(t, TrackIDPrefix+"536f6e672d2f6d757369632f612e6d7033", TrackID(a))
}

func TestScanProgress_Percentage(t *testing.T) {
	assert.Equal(t, -1.0, ScanProgress{FilesScanned: 3}.Percentage())
	assert.InDelta(t, 50.0, ScanProgress{FilesScanned: 5, TotalFiles: 10}.Percentage(), 0.001)
}
