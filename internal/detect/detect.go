// Package detect implements the Change Detector: a pure function mapping
// a new observation of a source plus its prior Registry record (if any) to
// the kind of change that occurred, so the Index Manager knows which
// primitive steps to plan.
package detect

import "github.com/kestrel-docs/docindex/internal/registry"

// ChangeKind is the outcome of comparing a new observation of a source
// against its prior Registry record.
type ChangeKind string

const (
	// Unchanged means the record exists and both fingerprints match; no
	// action is required beyond advancing updated_at.
	Unchanged ChangeKind = "unchanged"

	// NewDocument means no record exists for this source; a full add is
	// required.
	NewDocument ChangeKind = "new_document"

	// ContentChanged means the record exists but its content fingerprint
	// differs; the old doc_id is removed and a new one added.
	ContentChanged ChangeKind = "content_changed"

	// OptionsChanged means content is identical but the processing options
	// fingerprint differs; chunks are regenerated (from cache if possible)
	// and the old doc_id is replaced.
	OptionsChanged ChangeKind = "options_changed"

	// MetadataOnly means both fingerprints match but declared metadata
	// (size, last-modified) drifted; only the Registry row is patched.
	MetadataOnly ChangeKind = "metadata_only"

	// Corrupt means the record's consistency flags disagree with what the
	// adapters actually hold; a repair pass is required before anything
	// else proceeds for this doc_id.
	Corrupt ChangeKind = "corrupt"
)

// Observation describes a new sighting of a source: its freshly computed
// fingerprints and whether verify_consistency has already flagged it.
type Observation struct {
	Source             string
	ContentFingerprint string
	OptionsFingerprint string
	MetadataFingerprint string
	// Inconsistent is set by the caller when a prior verify_consistency
	// pass already flagged this doc_id as anything other than Consistent.
	// Detect trusts this rather than re-deriving it, since consistency
	// requires querying both adapters and this function stays pure.
	Inconsistent bool
}

// Decide classifies a change. existing is the current Registry record for
// this source, or nil if none exists.
func Decide(obs Observation, existing *registry.DocumentRecord) ChangeKind {
	if existing == nil {
		return NewDocument
	}

	if obs.Inconsistent {
		return Corrupt
	}

	contentChanged := obs.ContentFingerprint != existing.Fingerprint
	optionsChanged := obs.OptionsFingerprint != existing.OptionsFP

	// Tie-break: if both content and options changed, ContentChanged wins
	// since it already implies a full remove-then-add.
	if contentChanged {
		return ContentChanged
	}
	if optionsChanged {
		return OptionsChanged
	}
	if obs.MetadataFingerprint != existing.MetadataFP {
		return MetadataOnly
	}
	return Unchanged
}
