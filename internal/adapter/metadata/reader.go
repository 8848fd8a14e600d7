// Package metadata reads song tags from audio files.
package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	"github.com/rs/zerolog"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

// coverNames are looked up next to a song when it has no embedded artwork path.
var coverNames = []string{"cover.jpg", "cover.png", "folder.jpg", "folder.png", "front.jpg"}

// DurationFunc measures a file's playing time.
type DurationFunc func(path string) (time.Duration, error)

// TagReader builds Songs from ID3/MP4/FLAC/Ogg tags.
// Files without readable tags still yield a Song titled after the file name.
type TagReader struct {
	logger   zerolog.Logger
	duration DurationFunc
}

// NewTagReader creates a reader. duration may be nil, leaving Duration unknown.
func NewTagReader(logger zerolog.Logger, duration DurationFunc) *TagReader {
	return &TagReader{
		logger:   logger.With().Str("component", "metadata").Logger(),
		duration: duration,
	}
}

// ReadSong extracts metadata from the file at path.
func (r *TagReader) ReadSong(path string) (domain.Song, error) {
	if path == "" {
		return domain.Song{}, domain.ErrInvalidFilePath
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Song{}, errors.Wrapf(domain.ErrFileNotFound, "%s", path)
		}
		return domain.Song{}, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	song := domain.Song{
		Title:         strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FileReference: path,
		ImagePath:     findCover(filepath.Dir(path)),
	}

	if m, err := tag.ReadFrom(file); err == nil && m != nil {
		if title := strings.TrimSpace(m.Title()); title != "" {
			song.Title = title
		}
		song.Artist = strings.TrimSpace(m.Artist())
		song.AlbumArtist = strings.TrimSpace(m.AlbumArtist())
		song.Album = strings.TrimSpace(m.Album())
		song.Track, _ = m.Track()
	} else {
		r.logger.Debug().Err(err).Str("file", path).Msg("no readable tags, using file name")
	}

	if song.AlbumArtist == "" {
		song.AlbumArtist = song.Artist
	}

	if r.duration != nil {
		if d, err := r.duration(path); err == nil {
			song.Duration = d
		} else {
			r.logger.Debug().Err(err).Str("file", path).Msg("duration unknown")
		}
	}

	return song, nil
}

func findCover(dir string) string {
	for _, name := range coverNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

var _ ports.MetadataReader = (*TagReader)(nil)
