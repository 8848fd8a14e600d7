// Package service provides business logic for the Rhino application.
package service

import (
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
	"github.com/rhinomusic/rhino/internal/queue"
)

// PlayerConfig tunes the playback controller.
type PlayerConfig struct {
	// ProgressInterval is how often progress events are published while playing
	ProgressInterval time.Duration

	// RestartThreshold is the fraction of a song after which Prev restarts it
	// instead of going back
	RestartThreshold float64

	// Volume is the initial volume (0-100)
	Volume int

	// Repeat is the initial repeat mode
	Repeat domain.RepeatMode

	// Rand drives shuffling; nil uses a time-seeded source
	Rand *rand.Rand
}

// DefaultPlayerConfig returns the default controller configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		ProgressInterval: 333 * time.Millisecond, // 3 times per second
		RestartThreshold: 0.01,
		Volume:           100,
		Repeat:           domain.RepeatOff,
	}
}

// PlayerService is the playback controller. It owns the queue, the now-playing
// position (always a canonical index, -1 for none), the repeat mode and the
// shuffle flag, and drives the media engine.
//
// All state is owned by a single goroutine. Commands are marshalled onto it and
// media engine events are consumed by it, so no two transitions ever run
// concurrently. Read accessors use an atomically published snapshot and never
// wait for the loop.
//
// Events are published from the loop goroutine. Handlers may call the read
// accessors but must not issue commands synchronously.
type PlayerService struct {
	// Dependencies (injected)
	logger zerolog.Logger
	engine ports.MediaEngine
	bus    ports.EventBus
	cfg    PlayerConfig

	// Loop-owned state
	queue    *queue.Queue
	position int
	repeat   domain.RepeatMode
	status   domain.PlaybackStatus
	volume   int
	token    uint64 // latest source request
	loaded   bool   // the latest source was confirmed by the engine

	state atomic.Pointer[domain.PlayerState]

	commands chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewPlayerService creates the playback controller and starts its loop.
func NewPlayerService(
	logger zerolog.Logger,
	engine ports.MediaEngine,
	bus ports.EventBus,
	cfg PlayerConfig,
) *PlayerService {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultPlayerConfig().ProgressInterval
	}
	if cfg.RestartThreshold <= 0 {
		cfg.RestartThreshold = DefaultPlayerConfig().RestartThreshold
	}
	if cfg.Volume < 0 || cfg.Volume > 100 {
		cfg.Volume = DefaultPlayerConfig().Volume
	}
	if !cfg.Repeat.Valid() || cfg.Repeat == domain.RepeatShuffle {
		// Shuffle repeat needs an active shuffle, which a fresh queue never has
		cfg.Repeat = domain.RepeatOff
	}

	s := &PlayerService{
		logger:   logger.With().Str("service", "player").Logger(),
		engine:   engine,
		bus:      bus,
		cfg:      cfg,
		queue:    queue.New(cfg.Rand),
		position: -1,
		repeat:   cfg.Repeat,
		volume:   cfg.Volume,
		commands: make(chan func()),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := engine.SetVolume(cfg.Volume); err != nil {
		s.logger.Warn().Err(err).Int("volume", cfg.Volume).Msg("failed to apply initial volume")
	}
	s.refresh()

	s.logger.Debug().Msg("player service initialized")
	go s.run()

	return s
}

// run is the controller loop.
func (s *PlayerService) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.ProgressInterval)
	defer ticker.Stop()

	events := s.engine.Events()
	for {
		select {
		case <-s.stop:
			return

		case cmd := <-s.commands:
			cmd()

		case ev, ok := <-events:
			if !ok {
				s.logger.Debug().Msg("media engine event stream closed")
				events = nil
				continue
			}
			s.handleMediaEvent(ev)
			s.refresh()

		case <-ticker.C:
			s.publishProgress()
		}
	}
}

// exec runs fn on the loop and waits for its result. The snapshot is
// refreshed before the caller resumes.
func (s *PlayerService) exec(fn func() error) error {
	errc := make(chan error, 1)
	cmd := func() {
		err := fn()
		s.refresh()
		errc <- err
	}
	select {
	case s.commands <- cmd:
	case <-s.done:
		return domain.ErrServiceStopped
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return domain.ErrServiceStopped
	}
}

// AddSong appends a song; with playNow it becomes the current song and loads.
func (s *PlayerService) AddSong(song domain.Song, playNow bool) error {
	return s.AddSongs([]domain.Song{song}, playNow)
}

// AddSongs appends songs in order; with playFirst the first one loads.
func (s *PlayerService) AddSongs(songs []domain.Song, playFirst bool) error {
	if len(songs) == 0 {
		return nil
	}
	return s.exec(func() error {
		first := -1
		for _, song := range songs {
			c := s.queue.Append(song)
			if first < 0 {
				first = c
			}
		}
		s.logger.Debug().Int("added", len(songs)).Int("length", s.queue.Len()).Msg("songs queued")
		s.publishQueue()

		if playFirst {
			s.load(first)
		}
		return nil
	})
}

// InsertNext inserts a song right after the current one, or first when
// nothing is selected. While shuffled it also plays next in shuffle order.
func (s *PlayerService) InsertNext(song domain.Song) error {
	return s.exec(func() error {
		c := s.position + 1
		if err := s.queue.InsertAt(song, c); err != nil {
			return err
		}
		if s.queue.IsShuffled() && s.position >= 0 {
			cur, _ := s.queue.Presentation(s.position)
			inserted, _ := s.queue.Presentation(c)
			to := cur + 1
			if inserted < cur {
				to = cur
			}
			if err := s.queue.Move(inserted, to); err != nil {
				return err
			}
		}
		s.publishQueue()
		return nil
	})
}

// PlayPause toggles playback. From a stopped engine it starts the first song
// in presentation order; on an empty queue it does nothing.
func (s *PlayerService) PlayPause() error {
	return s.exec(func() error {
		switch s.status {
		case domain.StatusPlaying:
			return s.engineCall("pause", s.engine.Pause())
		case domain.StatusPaused:
			return s.engineCall("play", s.engine.Play())
		}
		if s.queue.Len() == 0 {
			return nil
		}
		c, err := s.queue.Canonical(0)
		if err != nil {
			return err
		}
		s.load(c)
		return nil
	})
}

// Play resumes or starts playback of the current song. With nothing selected
// it behaves like PlayPause from a stopped engine.
func (s *PlayerService) Play() error {
	return s.exec(func() error {
		if s.status == domain.StatusPlaying {
			return nil
		}
		if s.position >= 0 {
			if !s.loaded {
				// Playback starts once the engine confirms the load
				return nil
			}
			return s.engineCall("play", s.engine.Play())
		}
		if s.queue.Len() == 0 {
			return nil
		}
		c, err := s.queue.Canonical(0)
		if err != nil {
			return err
		}
		s.load(c)
		return nil
	})
}

// Pause pauses playback if playing.
func (s *PlayerService) Pause() error {
	return s.exec(func() error {
		if s.status != domain.StatusPlaying {
			return nil
		}
		return s.engineCall("pause", s.engine.Pause())
	})
}

// Stop stops the engine and rewinds the current song. The position is kept.
func (s *PlayerService) Stop() error {
	return s.exec(func() error {
		return s.engineCall("stop", s.engine.Stop())
	})
}

// Next advances as if the current song had ended.
func (s *PlayerService) Next() error {
	return s.exec(s.advance)
}

// Prev restarts the current song once it is past the restart threshold,
// otherwise loads the previous song in presentation order.
func (s *PlayerService) Prev() error {
	return s.exec(func() error {
		if s.queue.Len() == 0 {
			return domain.ErrQueueEmpty
		}
		if s.position < 0 {
			c, err := s.queue.Canonical(0)
			if err != nil {
				return err
			}
			s.load(c)
			return nil
		}

		elapsed := s.engine.Position()
		threshold := time.Duration(float64(s.engine.Duration()) * s.cfg.RestartThreshold)
		if elapsed >= threshold {
			s.load(s.position)
			return nil
		}

		cur, err := s.queue.Presentation(s.position)
		if err != nil {
			return err
		}
		c, err := s.queue.Canonical(max(cur-1, 0))
		if err != nil {
			return err
		}
		s.load(c)
		return nil
	})
}

// PlaySong loads the song at a presentation index regardless of play state.
func (s *PlayerService) PlaySong(presentation int) error {
	return s.exec(func() error {
		c, err := s.queue.Canonical(presentation)
		if err != nil {
			return err
		}
		s.load(c)
		return nil
	})
}

// Seek moves the position within the current song.
func (s *PlayerService) Seek(position time.Duration) error {
	return s.exec(func() error {
		return s.seek(position)
	})
}

// SetPositionIfTrackMatches seeks only if trackID identifies the current song
// and position lies within it.
func (s *PlayerService) SetPositionIfTrackMatches(trackID string, position time.Duration) error {
	return s.exec(func() error {
		if s.position < 0 {
			return domain.ErrNoTrackLoaded
		}
		song, err := s.queue.Song(s.position)
		if err != nil {
			return err
		}
		if domain.TrackID(song) != trackID {
			return errors.Wrapf(domain.ErrTrackMismatch, "%s", trackID)
		}
		if position < 0 || position > s.engine.Duration() {
			return errors.Wrapf(domain.ErrInvalidPosition, "%s", position)
		}
		return s.seek(position)
	})
}

// SetVolume sets the output volume (0-100).
func (s *PlayerService) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return errors.Wrapf(domain.ErrInvalidVolume, "%d", volume)
	}
	return s.exec(func() error {
		if err := s.engine.SetVolume(volume); err != nil {
			return s.engineCall("volume", err)
		}
		s.volume = volume
		s.bus.Publish(domain.NewVolumeChangedEvent(volume))
		return nil
	})
}

// SetRepeatMode sets the repeat mode. Shuffle repeat without an active
// shuffle is stored as playlist repeat.
func (s *PlayerService) SetRepeatMode(mode domain.RepeatMode) error {
	if !mode.Valid() {
		return errors.Wrapf(domain.ErrInvalidRepeatMode, "%d", int(mode))
	}
	return s.exec(func() error {
		if mode == domain.RepeatShuffle && !s.queue.IsShuffled() {
			mode = domain.RepeatPlaylist
		}
		s.setRepeat(mode)
		return nil
	})
}

// CycleRepeat steps Off -> Playlist -> Song -> (Shuffle while shuffled) -> Off
// and returns the new mode.
func (s *PlayerService) CycleRepeat() (domain.RepeatMode, error) {
	var mode domain.RepeatMode
	err := s.exec(func() error {
		mode = nextRepeat(s.repeat, s.queue.IsShuffled())
		s.setRepeat(mode)
		return nil
	})
	return mode, err
}

func nextRepeat(mode domain.RepeatMode, shuffled bool) domain.RepeatMode {
	switch mode {
	case domain.RepeatOff:
		return domain.RepeatPlaylist
	case domain.RepeatPlaylist:
		return domain.RepeatSong
	case domain.RepeatSong:
		if shuffled {
			return domain.RepeatShuffle
		}
	}
	return domain.RepeatOff
}

// SetShuffle enters or leaves shuffle. Entering pins the current song to the
// front of the shuffle order; with fewer than two songs it leaves the queue
// unshuffled. Leaving demotes shuffle repeat to playlist repeat.
func (s *PlayerService) SetShuffle(enabled bool) error {
	return s.exec(func() error {
		if !enabled || !s.queue.Shuffle(s.position) {
			s.unshuffle()
		}
		shuffled := s.queue.IsShuffled()
		s.logger.Debug().Bool("requested", enabled).Bool("shuffled", shuffled).Msg("shuffle changed")
		s.bus.Publish(domain.NewShuffleChangedEvent(shuffled))
		s.publishQueue()
		return nil
	})
}

// RemoveSongs removes songs by presentation index. All indices are validated
// before anything is removed. Removing the current song stops playback.
func (s *PlayerService) RemoveSongs(presentation []int) error {
	return s.exec(func() error {
		canonical := make([]int, 0, len(presentation))
		for _, p := range presentation {
			c, err := s.queue.Canonical(p)
			if err != nil {
				return err
			}
			canonical = append(canonical, c)
		}

		removed, err := s.queue.RemoveMany(canonical)
		if err != nil {
			return err
		}

		stopped := false
		for _, c := range removed {
			switch {
			case c < s.position:
				s.position--
			case c == s.position:
				s.position = -1
				stopped = true
			}
		}
		if stopped {
			s.clearSource()
		}
		s.publishQueue()
		return nil
	})
}

// MoveSong moves a song between presentation indices.
func (s *PlayerService) MoveSong(from, to int) error {
	return s.exec(func() error {
		if err := s.queue.Move(from, to); err != nil {
			return err
		}
		if !s.queue.IsShuffled() && s.position >= 0 {
			s.position = queue.ShiftForMove(s.position, from, to)
		}
		s.publishQueue()
		return nil
	})
}

// ClearQueue empties the queue and stops playback. A shuffled queue comes
// out unshuffled.
func (s *PlayerService) ClearQueue() error {
	return s.exec(func() error {
		wasShuffled := s.queue.IsShuffled()
		s.position = -1
		s.queue.Clear()
		s.unshuffle()
		s.clearSource()
		if wasShuffled {
			s.bus.Publish(domain.NewShuffleChangedEvent(false))
		}
		s.publishQueue()
		return nil
	})
}

// unshuffle drops the permutation and the shuffle repeat mode that depends on it.
func (s *PlayerService) unshuffle() {
	s.position = s.queue.Unshuffle(s.position)
	if s.repeat == domain.RepeatShuffle {
		s.setRepeat(domain.RepeatPlaylist)
	}
}

// State returns the latest snapshot. The Queue slice must not be modified.
func (s *PlayerService) State() domain.PlayerState {
	return *s.state.Load()
}

// QueueLength returns the number of queued songs.
func (s *PlayerService) QueueLength() int {
	return len(s.state.Load().Queue)
}

// Queue returns the songs in presentation order.
func (s *PlayerService) Queue() []domain.Song {
	return slices.Clone(s.state.Load().Queue)
}

// SongAt returns the song at a presentation index.
func (s *PlayerService) SongAt(presentation int) (domain.Song, error) {
	q := s.state.Load().Queue
	if presentation < 0 || presentation >= len(q) {
		return domain.Song{}, errors.Wrapf(domain.ErrInvalidIndex, "presentation %d, length %d", presentation, len(q))
	}
	return q[presentation], nil
}

// RepeatMode returns the current repeat mode.
func (s *PlayerService) RepeatMode() domain.RepeatMode {
	return s.state.Load().Repeat
}

// IsShuffled returns the shuffle flag.
func (s *PlayerService) IsShuffled() bool {
	return s.state.Load().Shuffled
}

// IsPlaying reports whether the engine last reported playing.
func (s *PlayerService) IsPlaying() bool {
	return s.state.Load().Status == domain.StatusPlaying
}

// Volume returns the current volume.
func (s *PlayerService) Volume() int {
	return s.state.Load().Volume
}

// Position returns the engine's playback position.
func (s *PlayerService) Position() time.Duration {
	return s.engine.Position()
}

// Duration returns the length of the current source.
func (s *PlayerService) Duration() time.Duration {
	return s.engine.Duration()
}

// Shutdown stops the loop and the engine. It is safe to call more than once.
func (s *PlayerService) Shutdown() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
		err = s.engine.Stop()
		s.logger.Debug().Msg("player service stopped")
	})
	return err
}

// advance moves to the next song in presentation order according to the
// repeat mode.
func (s *PlayerService) advance() error {
	n := s.queue.Len()
	if n == 0 {
		return domain.ErrQueueEmpty
	}

	cur := -1
	if s.position >= 0 {
		cur, _ = s.queue.Presentation(s.position)
	}
	next := cur + 1

	switch s.repeat {
	case domain.RepeatShuffle:
		if next >= n {
			s.queue.Shuffle(-1)
			s.publishQueue()
			next = 0
		}
	case domain.RepeatPlaylist:
		if next >= n {
			next = 0
		}
	case domain.RepeatSong:
		next = max(cur, 0)
	default:
		if next >= n {
			s.logger.Debug().Msg("end of queue")
			s.position = -1
			s.clearSource()
			s.bus.Publish(domain.NewQueueIndexChangedEvent(-1, -1))
			s.bus.Publish(domain.NewEndOfQueueEvent())
			return nil
		}
	}

	c, err := s.queue.Canonical(next)
	if err != nil {
		return err
	}
	s.load(c)
	return nil
}

// load makes canonical index c current and requests its source.
func (s *PlayerService) load(c int) {
	song, err := s.queue.Song(c)
	if err != nil {
		s.logger.Error().Err(err).Int("index", c).Msg("load of invalid index")
		return
	}

	s.position = c
	s.token++
	s.loaded = false
	p, _ := s.queue.Presentation(c)
	s.bus.Publish(domain.NewQueueIndexChangedEvent(c, p))

	s.logger.Debug().Str("file", song.FileReference).Int("index", c).Uint64("token", s.token).Msg("loading song")
	if err := s.engine.SetSource(domain.Source{Token: s.token, FileReference: song.FileReference}); err != nil {
		s.logger.Warn().Err(err).Str("file", song.FileReference).Msg("media engine rejected source")
		s.bus.Publish(domain.NewTrackErrorEvent(song, err))
	}
}

// clearSource stops the engine and drops its source.
func (s *PlayerService) clearSource() {
	if err := s.engine.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to stop media engine")
	}
	s.token++
	s.loaded = false
	if err := s.engine.SetSource(domain.Source{Token: s.token}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear media source")
	}
}

func (s *PlayerService) handleMediaEvent(ev domain.MediaEvent) {
	// State changes describe the engine itself and arrive in order, so they
	// apply whatever source they were raised for.
	if ev.Kind != domain.MediaStateChanged && ev.Token != s.token {
		s.logger.Debug().
			Err(domain.ErrStaleEvent).
			Stringer("kind", ev.Kind).
			Uint64("token", ev.Token).
			Uint64("current", s.token).
			Msg("discarding media event")
		return
	}

	switch ev.Kind {
	case domain.MediaSourceLoaded:
		if s.position < 0 {
			return
		}
		song, err := s.queue.Song(s.position)
		if err != nil {
			return
		}
		s.loaded = true
		s.bus.Publish(domain.NewTrackLoadedEvent(song, s.position))
		if err := s.engine.Play(); err != nil {
			s.logger.Warn().Err(err).Str("file", song.FileReference).Msg("failed to start playback")
			s.bus.Publish(domain.NewTrackErrorEvent(song, err))
		}

	case domain.MediaEndOfTrack:
		if err := s.advance(); err != nil {
			s.logger.Debug().Err(err).Msg("auto advance")
		}

	case domain.MediaNoSource:
		s.bus.Publish(domain.NewNoMediaEvent())

	case domain.MediaStateChanged:
		if s.status == ev.State {
			return
		}
		s.status = ev.State
		s.bus.Publish(domain.NewPlaybackStateChangedEvent(ev.State))

	case domain.MediaLoadFailed:
		song, _ := s.queue.Song(s.position)
		s.logger.Warn().Err(ev.Err).Str("file", song.FileReference).Msg("media engine failed to load song")
		s.bus.Publish(domain.NewTrackErrorEvent(song, ev.Err))
	}
}

func (s *PlayerService) seek(position time.Duration) error {
	if s.position < 0 {
		return domain.ErrNoTrackLoaded
	}
	if err := s.engine.Seek(position); err != nil {
		return s.engineCall("seek", err)
	}
	s.bus.Publish(domain.NewSeekedEvent(s.engine.Position()))
	return nil
}

func (s *PlayerService) setRepeat(mode domain.RepeatMode) {
	s.repeat = mode
	s.bus.Publish(domain.NewRepeatModeChangedEvent(mode))
}

func (s *PlayerService) publishProgress() {
	if s.status != domain.StatusPlaying {
		return
	}
	s.bus.Publish(domain.NewProgressEvent(s.engine.Position(), s.engine.Duration()))
}

// publishQueue announces a queue mutation and where the current song now sits.
func (s *PlayerService) publishQueue() {
	s.bus.Publish(domain.NewQueueChangedEvent(s.queue.Songs()))
	p := -1
	if s.position >= 0 {
		p, _ = s.queue.Presentation(s.position)
	}
	s.bus.Publish(domain.NewQueueIndexChangedEvent(s.position, p))
}

// refresh publishes a new state snapshot for the read accessors.
func (s *PlayerService) refresh() {
	st := &domain.PlayerState{
		Position:     s.position,
		Presentation: -1,
		Status:       s.status,
		Repeat:       s.repeat,
		Shuffled:     s.queue.IsShuffled(),
		Volume:       s.volume,
		Queue:        s.queue.Songs(),
	}
	if s.position >= 0 {
		st.Current, _ = s.queue.Song(s.position)
		st.Presentation, _ = s.queue.Presentation(s.position)
	}
	s.state.Store(st)
}

func (s *PlayerService) engineCall(op string, err error) error {
	if err == nil {
		return nil
	}
	s.logger.Warn().Err(err).Str("op", op).Msg("media engine call failed")
	return errors.Wrapf(err, "media engine %s", op)
}

var _ ports.PlayerControl = (*PlayerService)(nil)
