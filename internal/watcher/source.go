// Package watcher detects content changes under registered document
// sources and emits debounced FileEvent batches for internal/queue to turn
// into Update jobs (the bridge lives in internal/queue's caller, not here,
// to avoid this package depending on the registry/queue schema).
//
// SourceWatcher uses fsnotify as its primary mechanism, falling back to
// PollingWatcher when fsnotify's inotify/kqueue handle can't be acquired
// (common on some network mounts and container filesystems).
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SourceWatcher implements Watcher over a dynamic set of registered
// source paths (each independently added/removed, unlike a single project
// root).
type SourceWatcher struct {
	fsWatcher   *fsnotify.Watcher
	pollWatcher *PollingWatcher
	useFsnotify bool
	debouncer   *Debouncer

	events chan []FileEvent
	errors chan error
	stopCh chan struct{}

	sources map[string]struct{}
	opts    Options

	mu             sync.RWMutex
	started        bool
	stopped        bool
	droppedBatches atomic.Uint64
}

var _ Watcher = (*SourceWatcher)(nil)

// NewSourceWatcher creates a watcher with the given options. Attempts
// fsnotify first; falls back to polling if the OS handle can't be
// acquired.
func NewSourceWatcher(opts Options) (*SourceWatcher, error) {
	opts = opts.WithDefaults()

	w := &SourceWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		sources:   make(map[string]struct{}),
		opts:      opts,
	}

	if fsw, err := fsnotify.NewWatcher(); err == nil {
		w.fsWatcher = fsw
		w.useFsnotify = true
	} else {
		w.useFsnotify = false
		w.pollWatcher = NewPollingWatcher(opts.PollInterval)
	}

	return w, nil
}

// AddSource registers a file or directory for watching. Safe to call
// before or after Start.
func (w *SourceWatcher) AddSource(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	w.mu.Lock()
	w.sources[absPath] = struct{}{}
	w.mu.Unlock()

	if w.useFsnotify {
		return w.addFsnotify(absPath)
	}
	return w.pollWatcher.AddRoot(absPath)
}

// RemoveSource stops watching a previously registered source.
func (w *SourceWatcher) RemoveSource(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	w.mu.Lock()
	delete(w.sources, absPath)
	w.mu.Unlock()

	if w.useFsnotify {
		return w.fsWatcher.Remove(absPath)
	}
	return w.pollWatcher.RemoveRoot(absPath)
}

// addFsnotify registers path with the fsnotify watcher, recursing into
// directories since fsnotify doesn't watch subtrees on its own.
func (w *SourceWatcher) addFsnotify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return w.fsWatcher.Add(path)
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsWatcher.Add(p)
	})
}

// Start begins forwarding change events for all registered sources.
func (w *SourceWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go w.forwardDebouncedEvents(ctx)

	if w.useFsnotify {
		return w.runFsnotify(ctx)
	}
	return w.runPolling(ctx)
}

func (w *SourceWatcher) runFsnotify(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *SourceWatcher) runPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case event, ok := <-w.pollWatcher.Events():
				if !ok {
					return
				}
				if w.isHidden(event.Path) {
					continue
				}
				w.debouncer.Add(event)
			case err, ok := <-w.pollWatcher.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()
	return w.pollWatcher.Start(ctx)
}

func (w *SourceWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	if w.isHidden(event.Name) {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			_ = w.fsWatcher.Add(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return // includes Chmod, which carries no content change
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// isHidden filters dotfiles and common editor swap/temp files — noise that
// would otherwise trigger a spurious reindex of a source directory.
func (w *SourceWatcher) isHidden(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp")
}

func (w *SourceWatcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) == 0 {
				continue
			}
			w.emitEvents(events)
		}
	}
}

func (w *SourceWatcher) emitEvents(events []FileEvent) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case w.events <- events:
	default:
		count := w.droppedBatches.Add(1)
		slog.Warn("source watcher event buffer full, dropping batch",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped_batches", count),
		)
	}
}

func (w *SourceWatcher) emitError(err error) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and releases resources. Safe to call multiple
// times.
func (w *SourceWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()

	if w.useFsnotify && w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.pollWatcher != nil {
		_ = w.pollWatcher.Stop()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of batched file events.
func (w *SourceWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of errors.
func (w *SourceWatcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches returns the number of event batches dropped due to
// buffer overflow.
func (w *SourceWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// WatcherType returns "fsnotify" or "polling".
func (w *SourceWatcher) WatcherType() string {
	if w.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}
