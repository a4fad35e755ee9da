package adminapi

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrel-docs/docindex/internal/registry"
)

// MaintenanceConsistencyCheck compares the registry's view of what's
// indexed against what the two adapters self-report, per doc_id.
func (a *Admin) MaintenanceConsistencyCheck(ctx context.Context) (map[string]registry.ConsistencyStatus, error) {
	return a.reg.VerifyConsistency(ctx, a.vector, a.keyword)
}

// RepairReport summarizes what Repair did for one doc_id.
type RepairReport struct {
	DocID  string
	Status registry.ConsistencyStatus
	Action string
}

// MaintenanceRepair re-runs consistency checking and acts on every
// inconsistent doc_id: an orphan doc_id (indexed but absent from the
// registry) is deleted from whichever adapter holds it, and a
// MissingInVector, MissingInKeyword or StateInconsistent doc_id has its
// registry record set to Failed with the status as its error. Missing
// chunks are not re-added to either adapter here.
func (a *Admin) MaintenanceRepair(ctx context.Context) ([]RepairReport, error) {
	report, err := a.reg.VerifyConsistency(ctx, a.vector, a.keyword)
	if err != nil {
		return nil, fmt.Errorf("consistency check: %w", err)
	}

	var out []RepairReport
	for docID, status := range report {
		switch status {
		case registry.Consistent:
			continue
		case registry.OrphanInVector:
			if err := a.vector.Delete(ctx, docID); err != nil {
				return out, fmt.Errorf("repair orphan %s in vector adapter: %w", docID, err)
			}
			out = append(out, RepairReport{DocID: docID, Status: status, Action: "deleted_from_vector"})
		case registry.OrphanInKeyword:
			if err := a.keyword.Delete(ctx, docID); err != nil {
				return out, fmt.Errorf("repair orphan %s in keyword adapter: %w", docID, err)
			}
			out = append(out, RepairReport{DocID: docID, Status: status, Action: "deleted_from_keyword"})
		case registry.MissingInVector, registry.MissingInKeyword, registry.StateInconsistent:
			rec, err := a.reg.Get(ctx, docID)
			if err != nil {
				return out, fmt.Errorf("load %s for repair: %w", docID, err)
			}
			if rec == nil {
				continue
			}
			if err := a.reg.SetState(ctx, docID, registry.Failed, string(status)); err != nil {
				return out, fmt.Errorf("flag %s for reingest: %w", docID, err)
			}
			out = append(out, RepairReport{DocID: docID, Status: status, Action: "flagged_for_reingest"})
		}
	}
	return out, nil
}

// CleanupReport summarizes what a maintenance cleanup pass reclaimed.
type CleanupReport struct {
	CacheEntriesSwept       int64
	FingerprintEntriesSwept int64
	IntentsCompacted        int64
}

// MaintenanceCleanup sweeps stale cache artifacts, stale fingerprint
// entries, and compacts the intent log, all against the same retention
// horizon.
func (a *Admin) MaintenanceCleanup(ctx context.Context) (CleanupReport, error) {
	horizon := 30 * 24 * time.Hour
	cutoff := time.Now().Add(-horizon)

	cacheSwept, err := a.artif.Sweep(ctx, cutoff)
	if err != nil {
		return CleanupReport{}, fmt.Errorf("sweep cache: %w", err)
	}
	fpSwept, err := a.fp.Sweep(ctx, cutoff)
	if err != nil {
		return CleanupReport{}, fmt.Errorf("sweep fingerprint store: %w", err)
	}
	compacted, err := a.mgr.Compact(ctx, horizon)
	if err != nil {
		return CleanupReport{}, fmt.Errorf("compact intent log: %w", err)
	}

	return CleanupReport{
		CacheEntriesSwept:       cacheSwept,
		FingerprintEntriesSwept: fpSwept,
		IntentsCompacted:        compacted,
	}, nil
}
