// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/rhinomusic/rhino/internal/adapter/audio/beep"
	"github.com/rhinomusic/rhino/internal/adapter/audio/mock"
	"github.com/rhinomusic/rhino/internal/adapter/eventbus"
	"github.com/rhinomusic/rhino/internal/adapter/metadata"
	"github.com/rhinomusic/rhino/internal/adapter/mpris"
	"github.com/rhinomusic/rhino/internal/adapter/remote"
	"github.com/rhinomusic/rhino/internal/adapter/repository/bolt"
	"github.com/rhinomusic/rhino/internal/adapter/repository/memory"
	"github.com/rhinomusic/rhino/internal/config"
	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
	"github.com/rhinomusic/rhino/internal/service"
)

// Application is the root application structure that holds all dependencies.
// Dependencies are created once in NewApplication and released in reverse
// order by Shutdown.
type Application struct {
	logger zerolog.Logger
	cfg    *config.Config

	// Infrastructure
	eventBus    *eventbus.SyncEventBus
	audioEngine ports.MediaEngine
	reader      *metadata.TagReader

	// Repositories
	preferencesRepo ports.PreferencesRepository
	repoCloser      io.Closer

	// Services
	playerService     *service.PlayerService
	libraryService    *service.LibraryService
	preferenceService *service.PreferenceService

	// Control surfaces
	mprisServer  *mpris.Server
	remoteServer *remote.Server

	librarySub domain.SubscriptionID
	quit       chan struct{}
	quitOnce   sync.Once
	wg         sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc

	shutdownOnce sync.Once
}

// NewApplication creates a new application with all dependencies wired.
// Control surfaces are created here and started by Run.
func NewApplication(cfg *config.Config, logger zerolog.Logger) (*Application, error) {
	app := &Application{
		logger: logger,
		cfg:    cfg,
		quit:   make(chan struct{}),
	}
	app.logger.Info().Str("version", GetVersionInfo().FullString()).Msg("initializing application")

	// Step 1: Create an event bus
	app.eventBus = eventbus.NewSyncEventBus(logger.With().Str("component", "eventbus").Logger())

	// Step 2: Create an audio engine
	engine, err := app.openEngine()
	if err != nil {
		return nil, errors.Wrap(err, "initialize audio engine")
	}
	app.audioEngine = engine

	// Step 3: Create repositories
	if err := app.openRepository(); err != nil {
		_ = app.audioEngine.Close()
		return nil, err
	}

	// Step 4: Create services
	app.preferenceService = service.NewPreferenceService(logger, app.preferencesRepo, app.eventBus)

	playerCfg := service.DefaultPlayerConfig()
	playerCfg.ProgressInterval = cfg.ProgressInterval()
	playerCfg.RestartThreshold = cfg.Player.RestartThresholdPercent / 100
	playerCfg.Volume = app.preferenceService.Volume()
	playerCfg.Repeat = app.preferenceService.RepeatMode()
	app.playerService = service.NewPlayerService(logger, app.audioEngine, app.eventBus, playerCfg)

	// Persist changes only after the saved values were applied
	app.preferenceService.Attach()

	extensions := cfg.Library.Extensions
	if len(extensions) == 0 {
		extensions = beep.Extensions
	}
	var duration metadata.DurationFunc
	if cfg.Audio.Engine != "mock" {
		duration = beep.Probe
	}
	app.reader = metadata.NewTagReader(logger, duration)
	app.libraryService = service.NewLibraryService(logger, app.reader, app.eventBus, extensions)

	if len(cfg.Library.Paths) > 0 {
		if err := app.preferenceService.SetScanPaths(cfg.Library.Paths); err != nil {
			app.logger.Warn().Err(err).Msg("failed to save library paths")
		}
	}

	// Step 5: Create control surfaces
	if err := app.createSurfaces(); err != nil {
		app.Shutdown()
		return nil, err
	}

	return app, nil
}

func (a *Application) openEngine() (ports.MediaEngine, error) {
	log := a.logger.With().Str("engine", a.cfg.Audio.Engine).Logger()
	if a.cfg.Audio.Engine == "mock" {
		return mock.NewEngine(log), nil
	}
	return beep.Open(log, beep.Options{
		SampleRate: a.cfg.Audio.SampleRate,
		Buffer:     a.cfg.Buffer(),
	})
}

func (a *Application) openRepository() error {
	path := a.cfg.Storage.Path
	if path == config.MemoryStorage {
		a.preferencesRepo = memory.NewPreferencesRepository()
		return nil
	}

	repo, err := bolt.Open(path)
	if err != nil {
		return errors.Wrap(err, "open preferences")
	}
	a.logger.Debug().Str("path", path).Msg("preferences opened")
	a.preferencesRepo = repo
	a.repoCloser = repo
	return nil
}

func (a *Application) createSurfaces() error {
	mprisSettings, enabled, err := a.cfg.MPRIS()
	if err != nil {
		return errors.Wrap(err, "mpris settings")
	}
	if enabled {
		a.mprisServer = mpris.NewServer(a.logger, a.playerService, a.reader, a.eventBus, mpris.Options{
			Identity: mprisSettings.Identity,
			BusName:  mprisSettings.BusName,
			Quit:     a.Quit,
		})
	}

	remoteSettings, enabled, err := a.cfg.Remote()
	if err != nil {
		return errors.Wrap(err, "remote settings")
	}
	if enabled {
		a.remoteServer = remote.NewServer(a.logger, a.playerService, a.eventBus, remote.Options{
			Addr:           remoteSettings.Addr,
			AllowedOrigins: remoteSettings.AllowedOrigins,
		})
	}
	return nil
}

// Run starts the control surfaces, queues paths (the library folders when
// none are given) and blocks until ctx is done or a surface asks to quit.
func (a *Application) Run(ctx context.Context, paths []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	if a.mprisServer != nil {
		if err := a.mprisServer.Start(); err != nil {
			// Desktop integration is optional; headless systems have no session bus
			a.logger.Warn().Err(err).Msg("mpris unavailable")
			a.mprisServer = nil
		}
	}
	if a.remoteServer != nil {
		if err := a.remoteServer.Start(); err != nil {
			return errors.Wrap(err, "start remote server")
		}
		a.logger.Info().Str("addr", a.remoteServer.Addr()).Msg("remote control listening")
	}

	play := len(paths) > 0
	if !play {
		paths = a.preferenceService.ScanPaths()
	}
	if len(paths) > 0 {
		if err := a.Enqueue(ctx, paths, play); err != nil {
			a.logger.Warn().Err(err).Msg("failed to queue songs")
		}
	}

	if a.cfg.Library.Watch {
		a.startWatch(ctx)
	}

	a.logger.Info().Msg("rhino started")
	select {
	case <-ctx.Done():
	case <-a.quit:
		a.logger.Info().Msg("quit requested")
	}
	return nil
}

// Enqueue scans paths (files or folders) and appends the songs to the queue.
// When play is set the first new song starts playing.
func (a *Application) Enqueue(ctx context.Context, paths []string, play bool) error {
	songs, err := a.libraryService.ScanFiles(ctx, paths)
	if err != nil {
		return errors.Wrap(err, "scan")
	}
	if len(songs) == 0 {
		a.logger.Warn().Strs("paths", paths).Msg("no playable songs found")
		return nil
	}
	a.logger.Info().Int("songs", len(songs)).Msg("songs queued")
	return a.playerService.AddSongs(songs, play)
}

// startWatch follows the library folders and appends new songs to the queue.
func (a *Application) startWatch(ctx context.Context) {
	dirs := a.preferenceService.ScanPaths()
	if len(dirs) == 0 {
		a.logger.Warn().Msg("library watch enabled without library paths")
		return
	}

	updates := make(chan []domain.Song, 16)
	a.librarySub = a.eventBus.Subscribe(domain.EventLibraryUpdated, func(e domain.Event) {
		select {
		case updates <- e.(domain.LibraryUpdatedEvent).Added:
		default:
			a.logger.Warn().Msg("library update dropped")
		}
	})

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.libraryService.Watch(ctx, dirs...); err != nil {
			a.logger.Warn().Err(err).Msg("library watch stopped")
		}
	}()
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case songs := <-updates:
				if err := a.playerService.AddSongs(songs, false); err != nil {
					a.logger.Warn().Err(err).Msg("failed to queue library update")
				}
			}
		}
	}()
}

// Quit ends Run. It is safe to call more than once.
func (a *Application) Quit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// Shutdown gracefully shuts down the application.
// It is safe to call more than once.
func (a *Application) Shutdown() {
	a.shutdownOnce.Do(a.shutdown)
}

func (a *Application) shutdown() {
	a.logger.Info().Msg("shutting down application")

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()
	if a.librarySub != "" {
		a.eventBus.Unsubscribe(a.librarySub)
	}
	a.wg.Wait()

	// Surfaces first so no command arrives during teardown
	if a.remoteServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), remote.RequestTimeout)
		if err := a.remoteServer.Stop(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("failed to stop remote server")
		}
		cancel()
	}
	if a.mprisServer != nil {
		if err := a.mprisServer.Stop(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to stop mpris server")
		}
	}

	// Services in reverse order of creation
	if a.libraryService != nil {
		if err := a.libraryService.Shutdown(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to shutdown library service")
		}
	}
	if a.playerService != nil {
		if err := a.playerService.Shutdown(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to shutdown player service")
		}
	}
	if a.preferenceService != nil {
		if err := a.preferenceService.Shutdown(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to shutdown preference service")
		}
	}

	if a.repoCloser != nil {
		if err := a.repoCloser.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close preferences")
		}
	}
	if a.audioEngine != nil {
		if err := a.audioEngine.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to shutdown audio engine")
		}
	}
	if err := a.eventBus.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close event bus")
	}

	a.logger.Info().Msg("application shutdown complete")
}

// Player returns the playback controller.
func (a *Application) Player() *service.PlayerService {
	return a.playerService
}

// Library returns the library service.
func (a *Application) Library() *service.LibraryService {
	return a.libraryService
}

// Preferences returns the preference service.
func (a *Application) Preferences() *service.PreferenceService {
	return a.preferenceService
}

// EventBus returns the application event bus.
func (a *Application) EventBus() ports.EventBus {
	return a.eventBus
}

// RemoteAddr returns the remote control listen address, empty when disabled.
func (a *Application) RemoteAddr() string {
	if a.remoteServer == nil {
		return ""
	}
	return a.remoteServer.Addr()
}
