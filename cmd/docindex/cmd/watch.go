package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrel-docs/docindex/internal/adminapi"
	"github.com/kestrel-docs/docindex/internal/extract"
	"github.com/kestrel-docs/docindex/internal/watcher"
)

// newWatchCmd starts the worker pool and a filesystem watcher together: the
// long-running foreground process a deployment points at one or more
// document roots. File events are debounced by watcher.SourceWatcher and
// turned into Add/Remove jobs here — this package, not internal/watcher
// itself, owns the path-to-doc_id bridge (see that package's doc comment).
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>...",
		Short: "Watch one or more files/directories and keep the index in sync with them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			return withApp(cfg, func(ctx context.Context, a *adminapi.Admin) error {
				if err := a.QueueStart(ctx); err != nil {
					return fmt.Errorf("start worker pool: %w", err)
				}

				w, err := watcher.NewSourceWatcher(watcher.DefaultOptions())
				if err != nil {
					return fmt.Errorf("create watcher: %w", err)
				}
				for _, path := range args {
					if err := w.AddSource(path); err != nil {
						return fmt.Errorf("watch %s: %w", path, err)
					}
				}

				sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				runErr := make(chan error, 1)
				go func() { runErr <- w.Start(sigCtx) }()

				fmt.Fprintf(cmd.OutOrStdout(), "watching %d source(s), press ctrl-c to stop\n", len(args))
				drainEvents(sigCtx, a, w)

				<-runErr
				return a.QueueStop(context.Background())
			})
		},
	}
}

// drainEvents consumes debounced file-event batches until ctx is cancelled,
// translating each into an enqueued Add/Remove job.
func drainEvents(ctx context.Context, a *adminapi.Admin, w *watcher.SourceWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			for _, ev := range batch {
				handleFileEvent(ctx, a, ev)
			}
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

func handleFileEvent(ctx context.Context, a *adminapi.Admin, ev watcher.FileEvent) {
	if ev.IsDir {
		return
	}
	switch ev.Operation {
	case watcher.OpCreate, watcher.OpModify:
		enqueueSource(ctx, a, ev.Path)
	case watcher.OpDelete:
		dequeueSource(ctx, a, ev.Path)
	case watcher.OpRename:
		if ev.OldPath != "" {
			dequeueSource(ctx, a, ev.OldPath)
		}
		enqueueSource(ctx, a, ev.Path)
	}
}

func enqueueSource(ctx context.Context, a *adminapi.Admin, path string) {
	mode, ok := modeForExt(path)
	if !ok {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("stat changed source failed", "path", path, "error", err)
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("read changed source failed", "path", path, "error", err)
		return
	}
	_, err = a.EnqueueAdd(ctx, adminapi.IngestRequest{
		SourceID: path,
		Content:  string(content),
		Mode:     mode,
		Size:     info.Size(),
		ModTime:  info.ModTime().Unix(),
	}, 0)
	if err != nil {
		slog.Warn("enqueue add failed", "path", path, "error", err)
	}
}

func dequeueSource(ctx context.Context, a *adminapi.Admin, path string) {
	rec, err := a.ResolveBySource(ctx, path)
	if err != nil || rec == nil {
		return
	}
	if _, err := a.EnqueueRemove(ctx, rec.DocID, 0); err != nil {
		slog.Warn("enqueue remove failed", "path", path, "error", err)
	}
}

// modeForExt infers a SourceMode from a file extension. Only Markdown has a
// concrete extractor wired in; everything else is skipped rather than
// queued for a mode nothing can extract.
func modeForExt(path string) (extract.SourceMode, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return extract.ModeMarkdown, true
	default:
		return "", false
	}
}
