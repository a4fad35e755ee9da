// Package adminapi wires the Registry, Queue, Index Manager, Cache,
// fingerprint Store, and hybrid search Engine behind the single set of
// operations every surface (CLI, eventual HTTP/MCP front end) calls
// through: add/update/remove a document, search, drive the worker pool,
// run maintenance, and read/write configuration.
//
// Admin owns no transport of its own. It is the thing a command handler
// calls into, the same way the teacher's coordinator sat behind its CLI
// and MCP server.
package adminapi

import (
	"context"
	"fmt"

	"github.com/kestrel-docs/docindex/internal/cache"
	"github.com/kestrel-docs/docindex/internal/config"
	"github.com/kestrel-docs/docindex/internal/extract"
	"github.com/kestrel-docs/docindex/internal/fingerprint"
	"github.com/kestrel-docs/docindex/internal/indexmgr"
	"github.com/kestrel-docs/docindex/internal/queue"
	"github.com/kestrel-docs/docindex/internal/registry"
	"github.com/kestrel-docs/docindex/internal/search"
	"github.com/kestrel-docs/docindex/internal/store"
)

// Capabilities bundles the external-capability implementations a caller
// injects — vectorizer, keyword generator, pair extractor, content
// extractors keyed by mode. Admin never constructs these itself: which
// concrete implementation backs each capability (Ollama-backed vs.
// offline-capable static fallback) is an operational decision made by
// cmd/docindex at startup, not something the admin layer should hardcode.
type Capabilities struct {
	Extractors map[extract.SourceMode]extract.ContentExtractor
	Vectorizer extract.Vectorizer
	Keywords   extract.KeywordGenerator // may be nil: augmentation is optional
	Pairs      extract.PairExtractor    // may be nil: pair extraction is optional
}

// Admin is the concrete implementation of every administrative and
// query operation docindex exposes.
type Admin struct {
	cfg *config.Config

	reg     *registry.Registry
	q       *queue.Queue
	fp      *fingerprint.Store
	artif   *cache.Cache
	vector  store.VectorAdapter
	keyword store.KeywordAdapter
	engine  *search.Engine
	mgr     *indexmgr.Manager

	caps Capabilities

	pool *workerHandle
}

// Dependencies groups the already-open stores Admin drives. Opening and
// closing these is cmd/docindex's responsibility (it knows the data
// directory layout); Admin just wires them together.
type Dependencies struct {
	Registry    *registry.Registry
	Queue       *queue.Queue
	Fingerprint *fingerprint.Store
	Cache       *cache.Cache
	Vector      store.VectorAdapter
	Keyword     store.KeywordAdapter
	Engine      *search.Engine
	Manager     *indexmgr.Manager
}

// New builds an Admin over already-open dependencies.
func New(cfg *config.Config, deps Dependencies, caps Capabilities) (*Admin, error) {
	if deps.Registry == nil || deps.Queue == nil || deps.Fingerprint == nil ||
		deps.Cache == nil || deps.Vector == nil || deps.Keyword == nil ||
		deps.Engine == nil || deps.Manager == nil {
		return nil, fmt.Errorf("adminapi: all dependencies are required")
	}
	if caps.Vectorizer == nil {
		return nil, fmt.Errorf("adminapi: a vectorizer capability is required")
	}
	return &Admin{
		cfg:     cfg,
		reg:     deps.Registry,
		q:       deps.Queue,
		fp:      deps.Fingerprint,
		artif:   deps.Cache,
		vector:  deps.Vector,
		keyword: deps.Keyword,
		engine:  deps.Engine,
		mgr:     deps.Manager,
		caps:    caps,
	}, nil
}

// Close stops a running worker pool, if any, and releases nothing else:
// the individual stores are owned and closed by whoever built Dependencies.
func (a *Admin) Close(ctx context.Context) error {
	return a.QueueStop(ctx)
}

// ResolveBySource looks up the current document record registered under a
// source path, if any. Used by the watcher bridge to turn a delete event
// (which carries only a path) into the doc_id Remove needs.
func (a *Admin) ResolveBySource(ctx context.Context, source string) (*registry.DocumentRecord, error) {
	return a.reg.FindBySource(ctx, source)
}
