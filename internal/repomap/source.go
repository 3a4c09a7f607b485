package repomap

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Source yields the current repository map
type Source interface {
	Load() (*Map, error)
}

// FileSource re-reads the file on every Load
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path on demand
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load() (*Map, error) {
	return ParseFile(s.path)
}

// =============================================================================
// Watched Source
// =============================================================================

// WatchedSource caches the parsed map and drops the cache whenever the
// file changes on disk. Without a working watcher it behaves like
// FileSource.
type WatchedSource struct {
	path   string
	logger *slog.Logger

	mu         sync.Mutex
	cached     *Map
	generation uint64

	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWatchedSource creates a source for path and starts watching it
func NewWatchedSource(path string, logger *slog.Logger) *WatchedSource {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	s := &WatchedSource{
		path:   abs,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if err := s.startWatcher(); err != nil {
		logger.Warn("repository map watcher unavailable, reloading on every request",
			"path", s.path,
			"error", err)
	}

	return s
}

// startWatcher watches the parent directory so that editors which replace
// the file by rename are still seen
func (s *WatchedSource) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}

	s.watcher = watcher
	s.wg.Add(1)
	go s.watch()
	return nil
}

func (s *WatchedSource) watch() {
	defer s.wg.Done()

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			s.logger.Debug("repository map changed",
				"path", s.path,
				"op", event.Op.String())
			s.invalidate()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			// A dropped event may hide a change
			s.logger.Warn("repository map watcher error", "error", err)
			s.invalidate()

		case <-s.stopCh:
			return
		}
	}
}

func (s *WatchedSource) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.generation++
	s.mu.Unlock()
}

// Load returns the cached map, parsing the file if the cache is empty
func (s *WatchedSource) Load() (*Map, error) {
	s.mu.Lock()
	if s.watcher != nil && s.cached != nil {
		m := s.cached
		s.mu.Unlock()
		return m, nil
	}
	generation := s.generation
	s.mu.Unlock()

	m, err := ParseFile(s.path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Do not cache a map that a concurrent change already made stale
	if s.watcher != nil && s.generation == generation {
		s.cached = m
	}
	s.mu.Unlock()

	return m, nil
}

// Watching reports whether change notifications are active
func (s *WatchedSource) Watching() bool {
	return s.watcher != nil
}

// Close stops the watcher
func (s *WatchedSource) Close() error {
	if s.watcher == nil {
		return nil
	}

	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		err = s.watcher.Close()
		s.wg.Wait()
	})
	return err
}
