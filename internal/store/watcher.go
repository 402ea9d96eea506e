package store

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

const (
	watchDebounce = 100 * time.Millisecond
	// ownWriteWindow bounds how long after SaveSeries an event is attributed to it.
	ownWriteWindow = 2 * time.Second
)

// SeriesWatcher reports changes to series files made outside the running
// process, e.g. a file edited or replaced by hand.
type SeriesWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func(safeName string)

	mu     sync.Mutex
	timers map[string]*time.Timer
	done   chan struct{}
	wg     sync.WaitGroup
}

// WatchSeries starts watching dir. onChange receives the sanitized query name
// of each changed file, at most once per debounce window.
func WatchSeries(dir string, onChange func(safeName string)) (*SeriesWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher: %v", closeErr)
		}
		return nil, err
	}

	w := &SeriesWatcher{
		watcher:  watcher,
		onChange: onChange,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *SeriesWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".csv") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(strings.TrimSuffix(name, ".csv"))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Series watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *SeriesWatcher) schedule(safeName string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[safeName]; ok {
		t.Stop()
	}
	w.timers[safeName] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.timers, safeName)
		w.mu.Unlock()
		logger.Debug("Series file changed: %s", safeName)
		w.onChange(safeName)
	})
}

// Close stops the watcher and cancels pending notifications.
func (w *SeriesWatcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
	w.mu.Unlock()
	return err
}

// Watch is WatchSeries on the store's series directory, skipping the events
// caused by its own SaveSeries calls.
func (s *FileStore) Watch(onChange func(safeName string)) (*SeriesWatcher, error) {
	return WatchSeries(s.SeriesDir(), func(safeName string) {
		if s.takeOwnWrite(safeName) {
			logger.Debug("Ignoring own write to series %s", safeName)
			return
		}
		onChange(safeName)
	})
}

func (s *FileStore) markOwnWrite(safeName string) {
	s.ownMu.Lock()
	defer s.ownMu.Unlock()
	s.ownWrites[safeName] = time.Now()
}

// takeOwnWrite reports whether safeName was written by this store within
// ownWriteWindow, and forgets the write either way.
func (s *FileStore) takeOwnWrite(safeName string) bool {
	s.ownMu.Lock()
	defer s.ownMu.Unlock()
	at, ok := s.ownWrites[safeName]
	delete(s.ownWrites, safeName)
	return ok && time.Since(at) < ownWriteWindow
}
