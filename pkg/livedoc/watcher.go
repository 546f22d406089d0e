package livedoc

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// fileWatcher reports debounced changes for individual files by watching
// their parent directories. Watching the directory rather than the file
// survives editors that save through rename.
type fileWatcher struct {
	watcher            *fsnotify.Watcher
	stabilityThreshold time.Duration
	onChange           func(path string)
	dirs               map[string]int
	dirsMu             sync.Mutex
	done               chan struct{}
	debounceTimers     map[string]*time.Timer
	debounceMu         sync.Mutex
	// inflight counts onChange callbacks that have started; stop waits for them
	inflight sync.WaitGroup
	stopped  bool
}

func newFileWatcher(stabilityThreshold time.Duration, onChange func(path string)) (*fileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if stabilityThreshold <= 0 {
		stabilityThreshold = 100 * time.Millisecond
	}

	w := &fileWatcher{
		watcher:            watcher,
		stabilityThreshold: stabilityThreshold,
		onChange:           onChange,
		dirs:               make(map[string]int),
		done:               make(chan struct{}),
		debounceTimers:     make(map[string]*time.Timer),
	}
	go w.eventLoop()
	return w, nil
}

// add starts watching the directory containing path
func (w *fileWatcher) add(path string) error {
	dir := filepath.Dir(path)

	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()

	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		log.Debug().Str("dir", dir).Msg("Watching directory")
	}
	w.dirs[dir]++
	return nil
}

// remove releases one reference on the directory containing path
func (w *fileWatcher) remove(path string) {
	dir := filepath.Dir(path)

	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()

	count, ok := w.dirs[dir]
	if !ok {
		return
	}
	if count > 1 {
		w.dirs[dir] = count - 1
		return
	}
	delete(w.dirs, dir)
	if err := w.watcher.Remove(dir); err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("Failed to unwatch directory")
	}
}

// stop closes the watcher and returns once no onChange callback is running
func (w *fileWatcher) stop() error {
	w.debounceMu.Lock()
	if w.stopped {
		w.debounceMu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.done)
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	clear(w.debounceTimers)
	w.debounceMu.Unlock()

	w.inflight.Wait()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *fileWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.debounceEvent(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

// debounceEvent coalesces rapid events for the same file
func (w *fileWatcher) debounceEvent(name string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.stopped {
		return
	}
	if timer, exists := w.debounceTimers[name]; exists {
		timer.Stop()
	}

	w.debounceTimers[name] = time.AfterFunc(w.stabilityThreshold, func() {
		w.debounceMu.Lock()
		if w.stopped {
			w.debounceMu.Unlock()
			return
		}
		delete(w.debounceTimers, name)
		w.inflight.Add(1)
		w.debounceMu.Unlock()

		defer w.inflight.Done()
		w.onChange(name)
	})
}
