package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PollingWatcher watches a set of registered source paths for changes by
// periodically re-scanning them. Used as a fallback when fsnotify is not
// available (network mounts, some container filesystems).
type PollingWatcher struct {
	interval  time.Duration
	roots     map[string]struct{}
	fileState map[string]fileSnapshot
	events    chan FileEvent
	errors    chan error
	stopCh    chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a new polling watcher with the given interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval:  interval,
		roots:     make(map[string]struct{}),
		fileState: make(map[string]fileSnapshot),
		events:    make(chan FileEvent, 100),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
}

// AddRoot registers a file or directory to poll. Takes an immediate
// baseline snapshot so the first tick after registration doesn't report
// the root's existing contents as newly created.
func (p *PollingWatcher) AddRoot(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roots[absPath] = struct{}{}
	p.snapshotRootLocked(absPath)
	return nil
}

// RemoveRoot deregisters a previously added root.
func (p *PollingWatcher) RemoveRoot(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.roots, absPath)
	for k := range p.fileState {
		if k == absPath || hasPathPrefix(k, absPath) {
			delete(p.fileState, k)
		}
	}
	return nil
}

func hasPathPrefix(path, prefix string) bool {
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}

// Start begins polling all registered roots until ctx is cancelled or Stop
// is called.
func (p *PollingWatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.detectChanges()
		}
	}
}

// Stop stops the polling watcher.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// snapshotRootLocked walks a root and records its current state without
// emitting events. Must be called with p.mu held.
func (p *PollingWatcher) snapshotRootLocked(root string) {
	_ = p.walk(root, func(path string, snapshot fileSnapshot) {
		p.fileState[path] = snapshot
	})
}

// detectChanges re-walks every registered root, compares against the
// previous snapshot, and emits CREATE/MODIFY/DELETE events for anything
// that changed.
func (p *PollingWatcher) detectChanges() {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]struct{})
	for root := range p.roots {
		_ = p.walk(root, func(path string, snapshot fileSnapshot) {
			seen[path] = struct{}{}
			prev, exists := p.fileState[path]
			switch {
			case !exists:
				p.emitEvent(FileEvent{Path: path, Operation: OpCreate, IsDir: snapshot.isDir, Timestamp: time.Now()})
			case prev.modTime != snapshot.modTime || prev.size != snapshot.size:
				p.emitEvent(FileEvent{Path: path, Operation: OpModify, IsDir: snapshot.isDir, Timestamp: time.Now()})
			}
			p.fileState[path] = snapshot
		})
	}

	for path, snapshot := range p.fileState {
		if _, ok := seen[path]; !ok {
			p.emitEvent(FileEvent{Path: path, Operation: OpDelete, IsDir: snapshot.isDir, Timestamp: time.Now()})
			delete(p.fileState, path)
		}
	}
}

// walk visits path (file or directory) and calls fn for each entry found.
func (p *PollingWatcher) walk(root string, fn func(path string, snapshot fileSnapshot)) error {
	info, err := os.Stat(root)
	if err != nil {
		return nil // source temporarily unreachable; next tick retries
	}
	if !info.IsDir() {
		fn(root, fileSnapshot{modTime: info.ModTime(), size: info.Size(), isDir: false})
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fn(path, fileSnapshot{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()})
		return nil
	})
}

// emitEvent sends an event to the events channel. Must be called with
// p.mu held.
func (p *PollingWatcher) emitEvent(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()),
		)
	}
}
