package watcher

import (
	"context"
	"time"
)

// Operation represents a source content-change operation type.
type Operation int

const (
	// OpCreate indicates a new file was created under a watched source.
	OpCreate Operation = iota
	// OpModify indicates an existing file's content changed.
	OpModify
	// OpDelete indicates a file was deleted.
	OpDelete
	// OpRename indicates a file was renamed or moved.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a detected change under a watched source path.
type FileEvent struct {
	// Path is the absolute path to the file that changed.
	Path string

	// OldPath is the previous path for rename events. Empty otherwise.
	OldPath string

	// Operation is the type of change detected.
	Operation Operation

	// IsDir indicates if the event is for a directory.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Watcher defines the interface for source content watching.
type Watcher interface {
	// Start begins watching all registered sources. Runs until Stop is
	// called or ctx is cancelled.
	Start(ctx context.Context) error

	// AddSource registers a file or directory for watching.
	AddSource(path string) error

	// RemoveSource stops watching a previously registered source.
	RemoveSource(path string) error

	// Stop stops the watcher and releases resources. Safe to call
	// multiple times.
	Stop() error

	// Events returns a channel of debounced, coalesced file event
	// batches. Closed when the watcher stops.
	Events() <-chan []FileEvent

	// Errors returns a channel of non-fatal watcher errors. Closed when
	// the watcher stops.
	Errors() <-chan error
}

// Options configures watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode (fallback).
	PollInterval time.Duration

	// EventBufferSize is the size of the event channel buffer.
	EventBufferSize int
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
