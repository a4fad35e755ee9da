package adminapi

import (
	"context"
	"fmt"

	"github.com/kestrel-docs/docindex/internal/queue"
	"github.com/kestrel-docs/docindex/internal/registry"
)

// StatusReport is the top-level health snapshot: document counts by
// registry state, queue stats, and whether the worker pool is running.
type StatusReport struct {
	DocumentsByState map[registry.State]int
	Queue            queue.Stats
	WorkerPoolUp     bool
}

// Status gathers a point-in-time health snapshot across the registry and
// queue. It does not touch the adapters directly — use
// MaintenanceConsistencyCheck for that, since it's more expensive.
func (a *Admin) Status(ctx context.Context) (StatusReport, error) {
	counts := make(map[registry.State]int)
	var cursor string
	for {
		recs, next, err := a.reg.List(ctx, registry.ListFilter{}, registry.Paging{Cursor: cursor, Limit: 500})
		if err != nil {
			return StatusReport{}, fmt.Errorf("list registry: %w", err)
		}
		for _, r := range recs {
			counts[r.State]++
		}
		if next == "" {
			break
		}
		cursor = next
	}

	stats, err := a.q.Stats(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("queue stats: %w", err)
	}

	return StatusReport{
		DocumentsByState: counts,
		Queue:            stats,
		WorkerPoolUp:     a.pool != nil,
	}, nil
}
