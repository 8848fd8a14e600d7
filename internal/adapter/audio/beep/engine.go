//go:build cgo

package beep

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

const eventBuffer = 64

// Engine plays one source at a time through the system speaker.
// Sources are decoded on a background goroutine and confirmed with a
// MediaSourceLoaded event carrying the request's token.
//
// Thread-safety: This implementation is thread-safe.
type Engine struct {
	logger zerolog.Logger
	rate   beep.SampleRate

	mu     sync.Mutex
	events chan domain.MediaEvent
	closed bool

	source   domain.Source
	status   domain.PlaybackStatus
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	vol      *effects.Volume
	volume   int

	// run identifies the speaker.Play call whose end callback is still valid.
	run uint64
}

// Open initializes the speaker and returns a ready engine.
func Open(logger zerolog.Logger, opts Options) (ports.MediaEngine, error) {
	return NewEngine(logger, opts)
}

// NewEngine initializes the speaker and creates the engine.
func NewEngine(logger zerolog.Logger, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	rate := beep.SampleRate(opts.SampleRate)
	if err := speaker.Init(rate, rate.N(opts.Buffer)); err != nil {
		return nil, domain.NewAudioEngineError("init", "", err.Error(), domain.ErrAudioUnavailable)
	}
	return &Engine{
		logger: logger.With().Str("component", "beep-engine").Logger(),
		rate:   rate,
		events: make(chan domain.MediaEvent, eventBuffer),
		volume: 100,
	}, nil
}

// SetSource replaces the current source. Decoding happens asynchronously.
func (e *Engine) SetSource(src domain.Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return domain.ErrServiceStopped
	}

	e.releaseLocked()
	e.source = src
	e.setStatus(domain.StatusStopped)

	if src.FileReference == "" {
		e.emit(domain.MediaEvent{Kind: domain.MediaNoSource, Token: src.Token})
		return nil
	}

	go e.load(src)
	return nil
}

func (e *Engine) load(src domain.Source) {
	streamer, format, err := decode(src.FileReference)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.source.Token != src.Token {
		if streamer != nil {
			_ = streamer.Close()
		}
		return
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("file", src.FileReference).Msg("failed to load source")
		e.emit(domain.MediaEvent{
			Kind:  domain.MediaLoadFailed,
			Token: src.Token,
			Err:   domain.NewAudioEngineError("load", src.FileReference, "decode failed", err),
		})
		return
	}

	e.streamer = streamer
	e.format = format
	e.logger.Debug().Str("file", src.FileReference).Uint64("token", src.Token).Msg("source loaded")
	e.emit(domain.MediaEvent{Kind: domain.MediaSourceLoaded, Token: src.Token})
}

// Play starts the loaded source, or resumes it when paused.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return domain.ErrNoTrackLoaded
	}

	if e.ctrl != nil {
		speaker.Lock()
		e.ctrl.Paused = false
		speaker.Unlock()
		e.setStatus(domain.StatusPlaying)
		return nil
	}

	e.run++
	run, token := e.run, e.source.Token

	resampled := beep.Resample(4, e.format.SampleRate, e.rate, e.streamer)
	e.ctrl = &beep.Ctrl{Streamer: resampled}
	e.vol = &effects.Volume{Streamer: e.ctrl, Base: 2}
	applyVolume(e.vol, e.volume)

	// The callback runs on the speaker goroutine with the speaker locked.
	speaker.Play(beep.Seq(e.vol, beep.Callback(func() {
		go e.finished(run, token)
	})))
	e.setStatus(domain.StatusPlaying)
	return nil
}

func (e *Engine) finished(run, token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.run != run {
		return
	}
	e.ctrl = nil
	e.vol = nil
	e.setStatus(domain.StatusStopped)
	e.emit(domain.MediaEvent{Kind: domain.MediaEndOfTrack, Token: token})
}

// Pause pauses playback.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return domain.ErrNoTrackLoaded
	}
	if e.ctrl == nil || e.status != domain.StatusPlaying {
		return nil
	}
	speaker.Lock()
	e.ctrl.Paused = true
	speaker.Unlock()
	e.setStatus(domain.StatusPaused)
	return nil
}

// Stop halts playback and rewinds the source.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.haltLocked()
	if e.streamer != nil {
		if err := e.streamer.Seek(0); err != nil {
			return domain.NewAudioEngineError("stop", e.source.FileReference, "rewind failed", err)
		}
	}
	e.setStatus(domain.StatusStopped)
	return nil
}

// Seek moves the position, clamped to the source length.
func (e *Engine) Seek(position time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return domain.ErrNoTrackLoaded
	}

	n := min(max(e.format.SampleRate.N(position), 0), e.streamer.Len())
	speaker.Lock()
	err := e.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		return domain.NewAudioEngineError("seek", e.source.FileReference, err.Error(), err)
	}
	return nil
}

// Position returns the elapsed time of the current source.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := e.streamer.Position()
	speaker.Unlock()
	return e.format.SampleRate.D(pos)
}

// Duration returns the length of the current source.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return 0
	}
	return e.format.SampleRate.D(e.streamer.Len())
}

// SetVolume sets the output volume (0-100).
func (e *Engine) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return domain.ErrInvalidVolume
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.volume = volume
	if e.vol != nil {
		speaker.Lock()
		applyVolume(e.vol, volume)
		speaker.Unlock()
	}
	return nil
}

// Events returns the status report channel.
func (e *Engine) Events() <-chan domain.MediaEvent {
	return e.events
}

// Close releases the source and the speaker.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.releaseLocked()
	e.closed = true
	close(e.events)
	speaker.Close()
	return nil
}

// haltLocked removes the source from the speaker. Caller holds mu.
func (e *Engine) haltLocked() {
	if e.ctrl == nil {
		return
	}
	speaker.Clear()
	e.run++
	e.ctrl = nil
	e.vol = nil
}

// releaseLocked halts and closes the current source. Caller holds mu.
func (e *Engine) releaseLocked() {
	e.haltLocked()
	if e.streamer != nil {
		if err := e.streamer.Close(); err != nil {
			e.logger.Debug().Err(err).Msg("failed to close streamer")
		}
		e.streamer = nil
	}
}

// setStatus updates the status and reports real transitions. Caller holds mu.
func (e *Engine) setStatus(status domain.PlaybackStatus) {
	if e.status == status {
		return
	}
	e.status = status
	e.emit(domain.MediaEvent{Kind: domain.MediaStateChanged, Token: e.source.Token, State: status})
}

// emit never blocks; a full buffer drops the event. Caller holds mu.
func (e *Engine) emit(ev domain.MediaEvent) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.logger.Warn().Stringer("kind", ev.Kind).Uint64("token", ev.Token).Msg("event buffer full, dropping")
	}
}

// applyVolume maps 0-100 onto a base-2 gain where 100 is unity.
func applyVolume(v *effects.Volume, volume int) {
	v.Silent = volume == 0
	if volume > 0 {
		v.Volume = math.Log2(float64(volume) / 100)
	}
}

var _ ports.MediaEngine = (*Engine)(nil)
