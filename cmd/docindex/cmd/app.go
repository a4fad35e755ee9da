package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kestrel-docs/docindex/internal/adminapi"
	"github.com/kestrel-docs/docindex/internal/cache"
	"github.com/kestrel-docs/docindex/internal/config"
	"github.com/kestrel-docs/docindex/internal/embed"
	"github.com/kestrel-docs/docindex/internal/extract"
	"github.com/kestrel-docs/docindex/internal/fingerprint"
	"github.com/kestrel-docs/docindex/internal/indexmgr"
	"github.com/kestrel-docs/docindex/internal/pairs"
	"github.com/kestrel-docs/docindex/internal/queue"
	"github.com/kestrel-docs/docindex/internal/registry"
	"github.com/kestrel-docs/docindex/internal/search"
	"github.com/kestrel-docs/docindex/internal/store"
)

// app bundles every open store/adapter behind the Admin facade, plus the
// close func that releases them in reverse-acquisition order.
type app struct {
	admin *adminapi.Admin
	close func() error
}

// openApp wires the full dependency graph described in SPEC_FULL.md's
// persisted-state layout: registry, queue, fingerprint store, intent log,
// artifact cache, vector adapter, keyword adapter, search engine, and the
// capability set (extractor/vectorizer/keyword-generator/pair-extractor)
// feeding adminapi.Admin.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dataDir := cfg.Paths.DataDir
	closers := make([]func() error, 0, 9)
	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	instanceLock := embed.NewFileLock(dataDir)
	acquired, err := instanceLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock on %s: %w", dataDir, err)
	}
	if !acquired {
		return nil, fmt.Errorf("data directory %s is already in use by another docindex process", dataDir)
	}
	closers = append(closers, instanceLock.Unlock)

	reg, err := registry.Open(filepath.Join(dataDir, "registry.db"))
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	closers = append(closers, reg.Close)

	q, err := queue.Open(filepath.Join(dataDir, "queue.db"), queue.Config{
		MaxAttempts: cfg.Workers.MaxAttempts,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open queue: %w", err)
	}
	closers = append(closers, q.Close)

	fp, err := fingerprint.Open(filepath.Join(dataDir, "fingerprints.db"))
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}
	closers = append(closers, fp.Close)

	artif, err := cache.Open(filepath.Join(dataDir, "cache.db"), cache.Config{
		HotCapacity:      cfg.Cache.HotCapacity,
		ExtractorVersion: cfg.Cache.ExtractorVersion,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open artifact cache: %w", err)
	}
	closers = append(closers, artif.Close)

	intentLog, err := indexmgr.OpenIntentLog(filepath.Join(dataDir, "intents.db"))
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open intent log: %w", err)
	}
	closers = append(closers, intentLog.Close)

	vector, err := store.NewHNSWVectorAdapter(filepath.Join(dataDir, "vector"), store.VectorAdapterConfig{
		Dimensions: cfg.Vector.Dimensions,
		M:          cfg.Vector.M,
		EfSearch:   cfg.Vector.EfSearch,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open vector adapter: %w", err)
	}
	closers = append(closers, vector.Close)

	keyword, err := store.NewBleveKeywordAdapter(filepath.Join(dataDir, "keyword"), store.KeywordAdapterConfig{
		K1: cfg.Keyword.K1,
		B:  cfg.Keyword.B,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open keyword adapter: %w", err)
	}
	closers = append(closers, keyword.Close)

	caps, vectorizer := buildCapabilities(ctx, cfg)
	if closable, ok := vectorizer.(interface{ Close() error }); ok {
		closers = append(closers, closable.Close)
	}

	engine, err := search.NewEngine(vector, keyword, vectorizer, nil, search.EngineConfig{
		DefaultTopK:     cfg.Hybrid.MaxResults,
		RRFConstant:     cfg.Hybrid.RRFConstant,
		ConsensusBoost:  cfg.Hybrid.ConsensusBoost,
		Alpha:           search.Weights{Vector: cfg.Hybrid.VectorWeight, Keyword: cfg.Hybrid.KeywordWeight},
		SearchTimeout:   cfg.Timeouts.Upstream,
		DefaultMethod:   search.Method(cfg.Hybrid.Method),
		OversampleConst: search.DefaultEngineConfig().OversampleConst,
		OversampleFactor: search.DefaultEngineConfig().OversampleFactor,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("build search engine: %w", err)
	}

	mgr := indexmgr.New(intentLog, reg)

	admin, err := adminapi.New(cfg, adminapi.Dependencies{
		Registry:    reg,
		Queue:       q,
		Fingerprint: fp,
		Cache:       artif,
		Vector:      vector,
		Keyword:     keyword,
		Engine:      engine,
		Manager:     mgr,
	}, caps)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("build admin: %w", err)
	}

	return &app{admin: admin, close: closeAll}, nil
}

// buildCapabilities assembles the extractor/vectorizer/keyword/pair set.
// The vectorizer comes from embed.NewEmbedder, the same provider-selection
// factory the teacher used to pick between Ollama, MLX, and the hash-based
// static fallback — cfg.Vector.Provider (persisted via `docindex config set
// vector.provider ollama|mlx|static`) drives the choice, with --ollama-host
// forcing the Ollama provider for one-off runs without touching config.
// embed.NewEmbedder wraps whatever it picks in its own LRU query cache, and
// never falls back silently: a provider that can't be reached at startup
// (model pull pending, server down, no MLX endpoint) returns an error here,
// which we degrade to the static vectorizer for rather than failing the
// whole command, since degraded search beats no search.
func buildCapabilities(ctx context.Context, cfg *config.Config) (adminapi.Capabilities, extract.Vectorizer) {
	caps := adminapi.Capabilities{
		Extractors: map[extract.SourceMode]extract.ContentExtractor{
			extract.ModeMarkdown: extract.NewMarkdownExtractor(),
		},
	}

	provider := embed.ParseProvider(cfg.Vector.Provider)
	if ollamaHost != "" {
		provider = embed.ProviderOllama
		os.Setenv("DOCINDEX_OLLAMA_HOST", ollamaHost)
	}

	var vectorizer extract.Vectorizer
	if chosen, err := embed.NewEmbedder(ctx, provider, ""); err != nil {
		slog.Warn("embedder unavailable, falling back to the static vectorizer", "provider", provider, "error", err)
		vectorizer = extract.NewStaticVectorizer()
	} else {
		vectorizer = chosen
	}

	if ollamaHost != "" {
		caps.Keywords = extract.NewOllamaKeywordGenerator(extract.OllamaConfig{
			Host:              ollamaHost,
			Model:             extract.DefaultKeywordModel,
			Timeout:           cfg.Timeouts.Upstream,
			RequestsPerSecond: extract.DefaultKeywordRPS,
		})
		caps.Pairs = pairs.NewOllamaExtractor(pairs.Config{
			Host:              ollamaHost,
			Model:             extract.DefaultKeywordModel,
			Timeout:           cfg.Timeouts.Upstream,
			RequestsPerSecond: extract.DefaultKeywordRPS,
		})
	}

	caps.Vectorizer = vectorizer
	return caps, vectorizer
}

func withApp(cfg *config.Config, fn func(ctx context.Context, a *adminapi.Admin) error) error {
	ctx := context.Background()
	application, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.close()
	return fn(ctx, application.admin)
}
