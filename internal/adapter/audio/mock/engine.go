// Package mock provides a scriptable implementation of the MediaEngine interface.
// It is used to test the player without an audio device and backs --engine=mock.
package mock

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

// DefaultDuration is the simulated length of every source unless overridden.
const DefaultDuration = 3 * time.Minute

const eventBuffer = 1024

// Engine simulates a media engine in memory without playing audio.
// By default every SetSource is confirmed immediately with a MediaSourceLoaded
// event; SetAutoLoad(false) defers confirmation until CompleteLoad.
//
// Thread-safety: This implementation is thread-safe.
type Engine struct {
	logger zerolog.Logger

	mu     sync.Mutex
	events chan domain.MediaEvent
	closed bool

	source    domain.Source
	status    domain.PlaybackStatus
	position  time.Duration
	volume    int
	durations map[string]time.Duration
	history   []domain.Source

	// Behavior configuration (for testing error scenarios)
	autoLoad bool
	failLoad bool
	failPlay bool
}

// NewEngine creates a new mock media engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		logger:    logger.With().Str("component", "mock-engine").Logger(),
		events:    make(chan domain.MediaEvent, eventBuffer),
		volume:    100,
		durations: make(map[string]time.Duration),
		autoLoad:  true,
	}
}

// SetAutoLoad controls whether SetSource confirms the load immediately.
func (m *Engine) SetAutoLoad(auto bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoLoad = auto
}

// SetFailLoad configures the mock to report load failures.
func (m *Engine) SetFailLoad(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = fail
}

// SetFailPlay configures the mock to fail Play.
func (m *Engine) SetFailPlay(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlay = fail
}

// SetDuration overrides the simulated length of one file.
func (m *Engine) SetDuration(file string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[file] = d
}

// SetSource records the request and, with auto load enabled, confirms it.
func (m *Engine) SetSource(src domain.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return domain.ErrServiceStopped
	}

	m.history = append(m.history, src)
	m.source = src
	m.position = 0
	m.setStatus(domain.StatusStopped)

	switch {
	case src.FileReference == "":
		m.emit(domain.MediaEvent{Kind: domain.MediaNoSource, Token: src.Token})
	case m.failLoad:
		m.emit(domain.MediaEvent{
			Kind:  domain.MediaLoadFailed,
			Token: src.Token,
			Err:   domain.NewAudioEngineError("load", src.FileReference, "mock load failed", nil),
		})
	case m.autoLoad:
		m.emit(domain.MediaEvent{Kind: domain.MediaSourceLoaded, Token: src.Token})
	}
	return nil
}

// CompleteLoad confirms the current source, for use with SetAutoLoad(false).
func (m *Engine) CompleteLoad() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit(domain.MediaEvent{Kind: domain.MediaSourceLoaded, Token: m.source.Token})
}

// Emit injects an arbitrary event, e.g. a loaded report for a superseded token.
func (m *Engine) Emit(ev domain.MediaEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit(ev)
}

// SimulateEnd plays the current source to its end.
func (m *Engine) SimulateEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.position = m.durationLocked()
	m.setStatus(domain.StatusStopped)
	m.emit(domain.MediaEvent{Kind: domain.MediaEndOfTrack, Token: m.source.Token})
}

// SimulateProgress moves the position as if audio had been playing.
func (m *Engine) SimulateProgress(position time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = min(max(position, 0), m.durationLocked())
}

// Play starts or resumes playback of the current source.
func (m *Engine) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.source.FileReference == "" {
		return domain.ErrNoTrackLoaded
	}
	if m.failPlay {
		return domain.NewAudioEngineError("play", m.source.FileReference, "mock play failed", nil)
	}
	m.setStatus(domain.StatusPlaying)
	return nil
}

// Pause pauses playback.
func (m *Engine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.source.FileReference == "" {
		return domain.ErrNoTrackLoaded
	}
	if m.status == domain.StatusPlaying {
		m.setStatus(domain.StatusPaused)
	}
	return nil
}

// Stop halts playback and rewinds.
func (m *Engine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.position = 0
	m.setStatus(domain.StatusStopped)
	return nil
}

// Seek moves the position, clamped to the source length.
func (m *Engine) Seek(position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.source.FileReference == "" {
		return domain.ErrNoTrackLoaded
	}
	m.position = min(max(position, 0), m.durationLocked())
	return nil
}

// Position returns the simulated position.
func (m *Engine) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Duration returns the simulated length of the current source.
func (m *Engine) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.durationLocked()
}

// SetVolume records the volume.
func (m *Engine) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return domain.ErrInvalidVolume
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = volume
	return nil
}

// Events returns the status report channel.
func (m *Engine) Events() <-chan domain.MediaEvent {
	return m.events
}

// Close closes the event channel. Further requests fail.
func (m *Engine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	return nil
}

// Source returns the current source.
func (m *Engine) Source() domain.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Sources returns every SetSource request in order.
func (m *Engine) Sources() []domain.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Source, len(m.history))
	copy(out, m.history)
	return out
}

// Status returns the simulated playback status.
func (m *Engine) Status() domain.PlaybackStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Volume returns the last volume set.
func (m *Engine) Volume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *Engine) durationLocked() time.Duration {
	if m.source.FileReference == "" {
		return 0
	}
	if d, ok := m.durations[m.source.FileReference]; ok {
		return d
	}
	return DefaultDuration
}

// setStatus updates the status and reports real transitions. Caller holds mu.
func (m *Engine) setStatus(status domain.PlaybackStatus) {
	if m.status == status {
		return
	}
	m.status = status
	m.emit(domain.MediaEvent{Kind: domain.MediaStateChanged, Token: m.source.Token, State: status})
}

// emit never blocks; a full buffer drops the event. Caller holds mu.
func (m *Engine) emit(ev domain.MediaEvent) {
	if m.closed {
		return
	}
	select {
	case m.events <- ev:
	default:
		m.logger.Warn().Stringer("kind", ev.Kind).Uint64("token", ev.Token).Msg("event buffer full, dropping")
	}
}

var _ ports.MediaEngine = (*Engine)(nil)
