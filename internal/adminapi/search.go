package adminapi

import (
	"context"

	"github.com/kestrel-docs/docindex/internal/search"
)

// Search runs a hybrid query through the Engine. Admin adds nothing of
// its own here beyond being the single call surface: fusion, adapter
// fan-out, and classification all live in internal/search.
func (a *Admin) Search(ctx context.Context, q search.Query) ([]search.Hit, error) {
	return a.engine.Search(ctx, q)
}
