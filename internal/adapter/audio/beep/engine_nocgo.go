//go:build !cgo

package beep

import (
	"github.com/rs/zerolog"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

// Open reports that speaker output needs cgo. Use the mock engine instead.
func Open(logger zerolog.Logger, _ Options) (ports.MediaEngine, error) {
	logger.Warn().Msg("built without cgo, audio output is unavailable")
	return nil, domain.NewAudioEngineError("init", "", "built without cgo", domain.ErrAudioUnavailable)
}
