package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrel-docs/docindex/internal/cache"
	"github.com/kestrel-docs/docindex/internal/detect"
	docerrors "github.com/kestrel-docs/docindex/internal/errors"
	"github.com/kestrel-docs/docindex/internal/extract"
	"github.com/kestrel-docs/docindex/internal/fingerprint"
	"github.com/kestrel-docs/docindex/internal/indexmgr"
	"github.com/kestrel-docs/docindex/internal/registry"
	"github.com/kestrel-docs/docindex/internal/store"
)

// IngestRequest describes one sighting of a source to add or update.
// Admin doesn't read files itself — the caller (cmd/docindex, or the
// watcher bridge) resolves SourceID to bytes and supplies them here, so
// this package stays independent of where sources actually live.
type IngestRequest struct {
	SourceID string
	Content  string
	Mode     extract.SourceMode
	Size     int64
	ModTime  int64 // unix seconds
}

// Add ingests a source for the first time, or re-ingests one whose prior
// record has drifted. Both add and update share the same change-detected
// path: Add exists as a distinct spec verb because callers (and exit
// codes) care whether a source was previously known, not because the
// underlying mechanics differ.
func (a *Admin) Add(ctx context.Context, req IngestRequest) (*registry.DocumentRecord, error) {
	return a.ingest(ctx, req)
}

// Update re-ingests an already-registered source. Functionally identical
// to Add: detect.Decide determines whether anything actually changed.
func (a *Admin) Update(ctx context.Context, req IngestRequest) (*registry.DocumentRecord, error) {
	return a.ingest(ctx, req)
}

func (a *Admin) ingest(ctx context.Context, req IngestRequest) (*registry.DocumentRecord, error) {
	if req.Mode == "" {
		req.Mode = extract.ModeAuto
	}

	existing, err := a.reg.FindBySource(ctx, req.SourceID)
	if err != nil {
		return nil, fmt.Errorf("lookup existing record for %s: %w", req.SourceID, err)
	}

	obs := detect.Observation{
		Source:              req.SourceID,
		ContentFingerprint:  contentFingerprint(req.Content),
		OptionsFingerprint:  optionsFingerprint(req.Mode, a.cfg.Chunking),
		MetadataFingerprint: metadataFingerprint(req.Size, req.ModTime),
	}
	if existing != nil {
		if status, err := a.consistencyFor(ctx, existing.DocID); err == nil && status != registry.Consistent {
			obs.Inconsistent = true
		}
	}

	kind := detect.Decide(obs, existing)

	switch kind {
	case detect.Unchanged:
		existing.UpdatedAt = time.Now().UTC()
		if err := a.reg.Upsert(ctx, existing); err != nil {
			return nil, fmt.Errorf("touch unchanged record: %w", err)
		}
		return existing, nil
	case detect.MetadataOnly:
		existing.MetadataFP = obs.MetadataFingerprint
		if err := a.runPlan(ctx, existing.DocID, "", req, kind, existing, nil, nil); err != nil {
			return nil, err
		}
		return existing, nil
	case detect.Corrupt:
		return nil, docerrors.ConsistencyError(
			fmt.Sprintf("document %s is corrupt, run maintenance repair before re-ingesting", existing.DocID), nil)
	}

	// NewDocument, ContentChanged, OptionsChanged all run the full
	// extract -> chunk -> cache -> index pipeline. doc_id is a
	// deterministic function of (source, content, options), per I2, so
	// ContentChanged and OptionsChanged always mint a fresh one here: the
	// changed content is a new document that supersedes the old doc_id,
	// never a mutation of it. oldDocID carries the superseded id through
	// so runPlan can delete its chunks from both adapters and retire its
	// Registry row, rather than reusing it and silently colliding
	// ChunkIds between the old and new content.
	docID := documentID(req.SourceID, obs.ContentFingerprint, obs.OptionsFingerprint)
	oldDocID := ""
	if existing != nil && (kind == detect.ContentChanged || kind == detect.OptionsChanged) {
		oldDocID = existing.DocID
	}

	extractor, ok := a.caps.Extractors[req.Mode]
	if !ok {
		return nil, fmt.Errorf("no content extractor registered for mode %q", req.Mode)
	}

	artifact, err := a.extractWithCache(ctx, req, extractor)
	if err != nil {
		return nil, docerrors.ExtractionError(fmt.Sprintf("extract %s", req.SourceID), err)
	}

	chunks := chunkContent(ctx, req.Mode, docID, req.SourceID, artifact.FullText, a.cfg.Chunking.ChunkSize, a.cfg.Chunking.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, docerrors.ValidationError(fmt.Sprintf("source %s produced no chunks", req.SourceID), nil)
	}
	assignPairs(chunks, artifact.Pairs)

	vectors, err := a.embedChunks(ctx, chunks)
	if err != nil {
		return nil, docerrors.UpstreamError("embed chunks", err)
	}

	chunkIDs := make([]store.ChunkId, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
	}

	rec := &registry.DocumentRecord{
		DocID:          docID,
		Source:         req.SourceID,
		Fingerprint:    obs.ContentFingerprint,
		OptionsFP:      obs.OptionsFingerprint,
		MetadataFP:     obs.MetadataFingerprint,
		ChunkIDs:       chunkIDs,
		Pairs:          artifact.Pairs,
		VectorIndexed:  true,
		KeywordIndexed: true,
		State:          registry.Indexing,
	}

	if err := a.runPlan(ctx, docID, oldDocID, req, kind, rec, chunks, vectors); err != nil {
		return nil, err
	}
	return rec, nil
}

// runPlan drives the Index Manager's Begin/Execute protocol for one
// doc_id, wiring each StepKind the plan contains to the concrete
// operation against cache, registry, and the two adapters. The fingerprint
// store is updated alongside the registry write so a later watcher-driven
// sighting can resolve source -> doc_id without a full registry lookup.
//
// oldDocID is the doc_id this operation supersedes (ContentChanged,
// OptionsChanged), or empty when there is none (NewDocument,
// MetadataOnly): VectorDelete/KeywordDelete run against oldDocID so the
// superseded content's chunks actually leave both adapters, while
// RegistryWrite retires its Registry row once the new one lands. req is
// persisted opaquely on the intent so a crash mid-plan can be replayed
// by re-enqueuing it verbatim.
func (a *Admin) runPlan(ctx context.Context, docID, oldDocID string, req IngestRequest, kind detect.ChangeKind, rec *registry.DocumentRecord, chunks []store.Chunk, vectors [][]float32) error {
	payload, err := json.Marshal(ingestPayload{
		SourceID: req.SourceID,
		Content:  req.Content,
		Mode:     req.Mode,
		Size:     req.Size,
		ModTime:  req.ModTime,
	})
	if err != nil {
		return fmt.Errorf("marshal recovery payload for %s: %w", docID, err)
	}

	intent, err := a.mgr.Begin(ctx, docID, req.SourceID, payload, kind)
	if err != nil {
		return fmt.Errorf("begin operation for %s: %w", docID, err)
	}
	if intent == nil {
		return nil // Unchanged: no steps to run
	}

	deleteID := docID
	if oldDocID != "" {
		deleteID = oldDocID
	}

	execs := indexmgr.StepExecutors{
		CachePut: func(ctx context.Context) error {
			return nil // artifact already cached by extractWithCache
		},
		RegistryWrite: func(ctx context.Context) error {
			if err := a.reg.Upsert(ctx, rec); err != nil {
				return err
			}
			if oldDocID != "" && oldDocID != docID {
				if err := a.reg.Delete(ctx, oldDocID); err != nil {
					return fmt.Errorf("retire superseded doc_id %s: %w", oldDocID, err)
				}
			}
			return a.fp.Put(ctx, fingerprint.Entry{
				Source:      rec.Source,
				Fingerprint: rec.Fingerprint,
				DocID:       rec.DocID,
			})
		},
		VectorAdd: func(ctx context.Context) error {
			return a.vector.Add(ctx, docID, chunks, vectors)
		},
		VectorDelete: func(ctx context.Context) error {
			return a.vector.Delete(ctx, deleteID)
		},
		KeywordAdd: func(ctx context.Context) error {
			return a.keyword.Add(ctx, docID, chunks)
		},
		KeywordDelete: func(ctx context.Context) error {
			return a.keyword.Delete(ctx, deleteID)
		},
	}

	return a.mgr.Execute(ctx, intent, execs)
}

func (a *Admin) consistencyFor(ctx context.Context, docID string) (registry.ConsistencyStatus, error) {
	report, err := a.reg.VerifyConsistency(ctx, a.vector, a.keyword)
	if err != nil {
		return "", err
	}
	status, ok := report[docID]
	if !ok {
		return registry.Consistent, nil
	}
	return status, nil
}

// extractWithCache runs content extraction (and pair extraction, when a
// PairExtractor capability is configured) behind the content-addressed
// cache, so re-ingesting byte-identical content with the same options
// never re-runs extraction.
func (a *Admin) extractWithCache(ctx context.Context, req IngestRequest, extractor extract.ContentExtractor) (cache.Artifact, error) {
	key := cache.Key{
		ContentHash:      contentFingerprint(req.Content),
		PromptHash:       optionsFingerprint(req.Mode, a.cfg.Chunking),
		ExtractorVersion: a.cfg.Cache.ExtractorVersion,
	}

	if artifact, hit, err := a.artif.Get(ctx, key); err == nil && hit {
		return artifact, nil
	}

	pages, err := extractor.Extract(ctx, req.Content, req.Mode)
	if err != nil {
		return cache.Artifact{}, err
	}

	fullText := joinPages(pages)

	var pairs []store.Pair
	if a.caps.Pairs != nil {
		pairs, err = a.caps.Pairs.ExtractPairs(ctx, fullText)
		if err != nil {
			pairs = nil // pair extraction is best-effort, never fatal to ingest
		}
	}

	artifact := cache.Artifact{
		FullText:         fullText,
		Pairs:            pairs,
		ParseMethod:      string(req.Mode),
		ExtractorVersion: a.cfg.Cache.ExtractorVersion,
	}
	if err := a.artif.Put(ctx, key, artifact); err != nil {
		return cache.Artifact{}, fmt.Errorf("cache artifact: %w", err)
	}
	return artifact, nil
}

func joinPages(pages []extract.ExtractedPage) string {
	if len(pages) == 0 {
		return ""
	}
	out := pages[0].Text
	for _, p := range pages[1:] {
		out += "\n\n" + p.Text
	}
	return out
}

func (a *Admin) embedChunks(ctx context.Context, chunks []store.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return a.caps.Vectorizer.EmbedBatch(ctx, texts)
}
