package adminapi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/kestrel-docs/docindex/internal/config"
	"github.com/kestrel-docs/docindex/internal/extract"
)

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// contentFingerprint identifies a source's raw content.
func contentFingerprint(raw string) string {
	return hashString(raw)
}

// optionsFingerprint identifies the processing options that shaped how a
// source's content was turned into chunks: extraction mode plus the
// chunking parameters in effect at ingest time. Changing either without
// changing the content still requires regenerating chunks.
func optionsFingerprint(mode extract.SourceMode, cfg config.ChunkingConfig) string {
	combined := fmt.Sprintf("%s\x00%d\x00%d", mode, cfg.ChunkSize, cfg.ChunkOverlap)
	return hashString(combined)
}

// metadataFingerprint identifies declared metadata that doesn't bear on
// content identity (size, modification time) but whose drift still needs
// recording so the Change Detector can tell MetadataOnly apart from
// Unchanged.
func metadataFingerprint(size int64, modTimeUnix int64) string {
	combined := fmt.Sprintf("%d\x00%d", size, modTimeUnix)
	return hashString(combined)
}

// documentID derives a deterministic, content-addressed doc_id from the
// triple that defines a document's identity: its source, the content it
// holds, and the options it was processed with. The same triple always
// yields the same id; changing either content or options yields a
// different one, so a changed document is a new doc_id rather than a
// mutation of the old one.
func documentID(source, contentFP, optionsFP string) string {
	combined := fmt.Sprintf("%s\x00%s\x00%s", source, contentFP, optionsFP)
	return hashString(combined)
}
