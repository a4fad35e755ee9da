package adminapi

import (
	"context"
	"fmt"
)

// Remove deletes a document from both adapters and the registry. Unlike
// add/update, removal has no intent-log plan of its own: detect.ChangeKind
// has no Remove variant since there's nothing to compare a removal
// against. Adapter deletes are idempotent, so a partial failure here is
// safe to simply retry.
func (a *Admin) Remove(ctx context.Context, docID string) error {
	rec, err := a.reg.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", docID, err)
	}
	if rec == nil {
		return nil
	}

	if err := a.vector.Delete(ctx, docID); err != nil {
		return fmt.Errorf("delete %s from vector adapter: %w", docID, err)
	}
	if err := a.keyword.Delete(ctx, docID); err != nil {
		return fmt.Errorf("delete %s from keyword adapter: %w", docID, err)
	}
	if err := a.reg.Delete(ctx, docID); err != nil {
		return fmt.Errorf("delete %s from registry: %w", docID, err)
	}
	if err := a.fp.Delete(ctx, rec.Source); err != nil {
		return fmt.Errorf("delete fingerprint entry for %s: %w", rec.Source, err)
	}
	return nil
}
