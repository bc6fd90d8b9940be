// Package watcher provides file system watching for the export
// directory. New or rewritten snapshot exports are debounced and
// surfaced as batched events, so a pipeline run can be triggered once
// per drop instead of once per write syscall.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write
// before emitting an event. Export files are copied into the directory,
// which produces a burst of writes per file.
const DefaultDebounce = 2 * time.Second

// Event is one debounced batch of export activity.
type Event struct {
	// Paths lists the export files that changed, deduplicated.
	Paths []string
}

// ExportWatcher watches the export directory for snapshot drops.
// It uses fsnotify for cross-platform file system event monitoring.
type ExportWatcher struct {
	watcher  *fsnotify.Watcher
	events   chan Event
	errors   chan error
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	dir      string
	debounce time.Duration
}

// New creates an ExportWatcher. A non-positive debounce falls back to
// DefaultDebounce. The watcher must be started with Start() before it
// will emit events.
func New(debounce time.Duration) (*ExportWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &ExportWatcher{
		watcher:  fsw,
		events:   make(chan Event, 10),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
		debounce: debounce,
	}, nil
}

// Start begins watching the export directory for CSV activity.
func (w *ExportWatcher) Start(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	w.dir = dir
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch export directory %s: %w", dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop stops watching and cleans up resources. It blocks until the
// event processing goroutine has exited.
func (w *ExportWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return nil
}

// IsRunning reports whether the watcher is currently active.
func (w *ExportWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Events returns the channel that emits debounced export events.
// This channel is closed when the watcher is stopped.
func (w *ExportWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (w *ExportWatcher) Errors() <-chan error {
	return w.errors
}

// processEvents converts raw fsnotify events into debounced Events. A
// timer restarts on every relevant write; when it fires, the pending
// paths go out as one batch.
func (w *ExportWatcher) processEvents() {
	defer w.wg.Done()

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-w.done:
			timer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			pending = make(map[string]bool)

			select {
			case w.events <- Event{Paths: paths}:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// relevant reports whether an fsnotify event concerns a snapshot export.
// Only CSV files count, and only arrivals and writes: removals need no
// pipeline run.
func relevant(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}
