// Package service provides business logic for the Rhino application.
package service

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

// DefaultExtensions are the formats the bundled media engine can decode.
var DefaultExtensions = []string{".mp3", ".wav", ".flac", ".ogg"}

// DefaultSettleDelay is how long a watched folder must stay quiet before new
// files are read, so that files still being copied are not read half-written.
const DefaultSettleDelay = 500 * time.Millisecond

// LibraryService turns folders and files into Songs for the queue.
// All operations are thread-safe via sync.RWMutex.
type LibraryService struct {
	// Dependencies (injected)
	logger zerolog.Logger
	reader ports.MetadataReader
	bus    ports.EventBus

	// State
	scanning      bool
	cancelScan    context.CancelFunc
	supportedExts []string
	settle        time.Duration

	// Concurrency control
	mu sync.RWMutex
}

// NewLibraryService creates a new library service.
// An empty extension list uses DefaultExtensions.
func NewLibraryService(
	logger zerolog.Logger,
	reader ports.MetadataReader,
	bus ports.EventBus,
	extensions []string,
) *LibraryService {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &LibraryService{
		logger: logger.With().Str("service", "library").Logger(),
		reader: reader,
		bus:    bus,
		supportedExts: lo.Map(extensions, func(ext string, _ int) string {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			return ext
		}),
		settle: DefaultSettleDelay,
	}
}

// SetSettleDelay overrides DefaultSettleDelay for Watch.
func (s *LibraryService) SetSettleDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settle = d
}

// ScanFolder scans a folder recursively for audio files and extracts metadata.
// Songs are returned in path order. Publishes progress events during scanning.
func (s *LibraryService) ScanFolder(ctx context.Context, folderPath string) ([]domain.Song, error) {
	ctx, done, err := s.beginScan(ctx, "ScanFolder")
	if err != nil {
		return nil, err
	}
	defer done()

	s.bus.Publish(domain.NewScanStartedEvent(folderPath))

	files, err := s.collectAudioFiles(ctx, folderPath)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.bus.Publish(domain.NewScanCancelledEvent("user cancelled"))
			return nil, domain.ErrScanCancelled
		}
		return nil, errors.Wrapf(err, "scan %s", folderPath)
	}

	songs, err := s.readAll(ctx, files)
	if err != nil {
		s.bus.Publish(domain.NewScanCancelledEvent("user cancelled"))
		return songs, err
	}

	s.logger.Info().Str("folder", folderPath).Int("songs", len(songs)).Msg("scan completed")
	s.bus.Publish(domain.NewScanCompletedEvent(songs))
	return songs, nil
}

// ScanFiles extracts metadata for specific files, skipping unsupported ones.
// Directories in the list are scanned recursively.
func (s *LibraryService) ScanFiles(ctx context.Context, paths []string) ([]domain.Song, error) {
	ctx, done, err := s.beginScan(ctx, "ScanFiles")
	if err != nil {
		return nil, err
	}
	defer done()

	files := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", p).Msg("skipping unreadable path")
			continue
		}
		if !info.IsDir() {
			if s.IsFormatSupported(p) {
				files = append(files, p)
			}
			continue
		}
		found, err := s.collectAudioFiles(ctx, p)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, domain.ErrScanCancelled
			}
			return nil, errors.Wrapf(err, "scan %s", p)
		}
		files = append(files, found...)
	}

	return s.readAll(ctx, files)
}

// CancelScan cancels the currently running scan operation.
func (s *LibraryService) CancelScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scanning {
		return domain.NewServiceError("LibraryService", "CancelScan", "no scan in progress", nil)
	}
	s.cancelScan()
	return nil
}

// IsScanning returns true if a scan is currently in progress.
func (s *LibraryService) IsScanning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanning
}

// IsFormatSupported checks if a file format is supported.
func (s *LibraryService) IsFormatSupported(filePath string) bool {
	return slices.Contains(s.supportedExts, strings.ToLower(filepath.Ext(filePath)))
}

// SupportedFormats returns the list of supported file extensions.
func (s *LibraryService) SupportedFormats() []string {
	return slices.Clone(s.supportedExts)
}

// ExtractMetadata reads a single file.
func (s *LibraryService) ExtractMetadata(filePath string) (domain.Song, error) {
	if !s.IsFormatSupported(filePath) {
		return domain.Song{}, errors.Wrapf(domain.ErrUnsupportedFormat, "%s", filePath)
	}
	if _, err := os.Stat(filePath); errors.Is(err, fs.ErrNotExist) {
		return domain.Song{}, errors.Wrapf(domain.ErrFileNotFound, "%s", filePath)
	}
	return s.reader.ReadSong(filePath)
}

// Watch follows dirs (recursively) and publishes a LibraryUpdatedEvent with
// the songs of files that appear in them. Each path is announced at most once
// per Watch call; files present at start and rewrites of known files are not
// announced. It blocks until ctx is done.
func (s *LibraryService) Watch(ctx context.Context, dirs ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	known := make(map[string]struct{})
	for _, dir := range dirs {
		existing, err := s.watchTree(watcher, dir)
		if err != nil {
			return err
		}
		for _, path := range existing {
			known[path] = struct{}{}
		}
	}

	s.mu.RLock()
	settle := s.settle
	s.mu.RUnlock()

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	pending := make(map[string]struct{})
	appeared := func(path string) {
		if _, ok := known[path]; ok {
			return
		}
		known[path] = struct{}{}
		pending[path] = struct{}{}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case ev.Has(fsnotify.Create):
				// Files moved into a watched folder also arrive as Create.
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					files, err := s.watchTree(watcher, ev.Name)
					if err != nil {
						s.logger.Warn().Err(err).Str("dir", ev.Name).Msg("failed to watch new folder")
					}
					for _, path := range files {
						appeared(path)
					}
				} else if s.IsFormatSupported(ev.Name) {
					appeared(ev.Name)
				}
			case ev.Has(fsnotify.Write):
				// Writes only hold back files that are still being copied.
				if _, ok := pending[ev.Name]; !ok {
					continue
				}
			default:
				continue
			}
			if len(pending) > 0 {
				timer.Reset(settle)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("watcher error")

		case <-timer.C:
			files := lo.Keys(pending)
			slices.Sort(files)
			clear(pending)

			songs := s.readFiles(files)
			if len(songs) > 0 {
				s.logger.Info().Int("songs", len(songs)).Msg("library updated")
				s.bus.Publish(domain.NewLibraryUpdatedEvent(songs))
			}
		}
	}
}

// Shutdown cancels any running scan.
func (s *LibraryService) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning && s.cancelScan != nil {
		s.cancelScan()
	}
	return nil
}

// beginScan marks a scan as running. The returned func ends it.
func (s *LibraryService) beginScan(ctx context.Context, op string) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		return nil, nil, domain.NewServiceError("LibraryService", op, "scan already in progress", domain.ErrScanInProgress)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.scanning = true
	s.cancelScan = cancel

	return ctx, func() {
		cancel()
		s.mu.Lock()
		s.scanning = false
		s.cancelScan = nil
		s.mu.Unlock()
	}, nil
}

// readAll reads metadata for files in order, publishing progress.
func (s *LibraryService) readAll(ctx context.Context, files []string) ([]domain.Song, error) {
	songs := make([]domain.Song, 0, len(files))
	total := len(files)

	for i, path := range files {
		select {
		case <-ctx.Done():
			return songs, domain.ErrScanCancelled
		default:
		}

		song, err := s.reader.ReadSong(path)
		if err != nil {
			s.logger.Debug().Err(err).Str("file", path).Msg("skipping unreadable file")
		} else {
			songs = append(songs, song)
		}

		s.bus.Publish(domain.NewScanProgressEvent(domain.ScanProgress{
			CurrentFile:  path,
			FilesScanned: i + 1,
			TotalFiles:   total,
			SongsFound:   len(songs),
		}))
	}
	return songs, nil
}

func (s *LibraryService) readFiles(files []string) []domain.Song {
	songs := make([]domain.Song, 0, len(files))
	for _, path := range files {
		song, err := s.reader.ReadSong(path)
		if err != nil {
			s.logger.Debug().Err(err).Str("file", path).Msg("skipping unreadable file")
			continue
		}
		songs = append(songs, song)
	}
	return songs
}

// collectAudioFiles recursively collects all audio files in a directory, sorted by path.
func (s *LibraryService) collectAudioFiles(ctx context.Context, folderPath string) ([]string, error) {
	files := make([]string, 0)

	err := filepath.WalkDir(folderPath, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return context.Canceled
		}
		if err != nil {
			if path == folderPath {
				return err
			}
			// Skip files/folders we can't access
			return nil
		}
		if !d.IsDir() && s.IsFormatSupported(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// watchTree adds root and its subfolders to watcher and returns the supported
// files already inside them.
func (s *LibraryService) watchTree(watcher *fsnotify.Watcher, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return errors.Wrapf(err, "watch %s", root)
			}
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				return errors.Wrapf(err, "watch %s", path)
			}
		} else if s.IsFormatSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
