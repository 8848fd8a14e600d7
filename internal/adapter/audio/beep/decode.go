// Package beep plays audio files through the gopxl/beep speaker.
package beep

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/rhinomusic/rhino/internal/domain"
)

// Extensions lists the formats decode understands.
var Extensions = []string{".mp3", ".wav", ".flac", ".ogg"}

// Options tunes speaker output.
type Options struct {
	// SampleRate is the output rate in Hz; sources are resampled to it
	SampleRate int

	// Buffer is the speaker buffer length. Longer buffers trade latency for
	// fewer underruns.
	Buffer time.Duration
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = 44100
	}
	if o.Buffer <= 0 {
		o.Buffer = 100 * time.Millisecond
	}
	return o
}

// decode opens path and picks a decoder by extension.
// The returned streamer owns the file.
func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var dec func(*os.File) (beep.StreamSeekCloser, beep.Format, error)
	switch ext {
	case ".mp3":
		dec = func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) }
	case ".wav":
		dec = func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) }
	case ".flac":
		dec = func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(f) }
	case ".ogg":
		dec = func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) }
	default:
		return nil, beep.Format{}, errors.Wrapf(domain.ErrUnsupportedFormat, "%s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, beep.Format{}, errors.Wrapf(domain.ErrFileNotFound, "%s", path)
		}
		return nil, beep.Format{}, errors.Wrapf(err, "open %s", path)
	}

	streamer, format, err := dec(f)
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "decode %s", path)
	}
	return streamer, format, nil
}

// Probe returns the playing time of an audio file.
func Probe(path string) (time.Duration, error) {
	streamer, format, err := decode(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}
