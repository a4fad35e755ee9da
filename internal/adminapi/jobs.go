package adminapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kestrel-docs/docindex/internal/extract"
	"github.com/kestrel-docs/docindex/internal/queue"
)

// ingestPayload is the JSON shape carried by KindAdd/KindUpdate jobs.
// The queue's worker pool reads "doc_id" off arbitrary payloads for
// per-document exclusion (see internal/queue's docIDFromPayload); it's
// left empty here on purpose for Add jobs, since a brand-new source has
// no doc_id yet to serialize against.
type ingestPayload struct {
	DocID    string            `json:"doc_id,omitempty"`
	SourceID string            `json:"source_id"`
	Content  string            `json:"content"`
	Mode     extract.SourceMode `json:"mode"`
	Size     int64             `json:"size"`
	ModTime  int64             `json:"mod_time"`
}

// removePayload is the JSON shape carried by KindRemove jobs.
type removePayload struct {
	DocID string `json:"doc_id"`
}

// EnqueueAdd submits an add/update as queued work instead of running it
// inline, so callers that want durability and worker-pool concurrency
// (rather than a synchronous Add/Update call) can get it.
func (a *Admin) EnqueueAdd(ctx context.Context, req IngestRequest, priority int) (*queue.Job, error) {
	return a.q.Enqueue(ctx, queue.KindAdd, ingestPayload{
		SourceID: req.SourceID,
		Content:  req.Content,
		Mode:     req.Mode,
		Size:     req.Size,
		ModTime:  req.ModTime,
	}, priority)
}

// EnqueueRemove submits a removal as queued work.
func (a *Admin) EnqueueRemove(ctx context.Context, docID string, priority int) (*queue.Job, error) {
	return a.q.Enqueue(ctx, queue.KindRemove, removePayload{DocID: docID}, priority)
}

// handlers builds the Kind -> Handler map the worker pool dispatches
// queued jobs through, each one unmarshaling its payload and calling the
// same Admin methods a synchronous caller would use.
func (a *Admin) handlers() map[queue.Kind]queue.Handler {
	return map[queue.Kind]queue.Handler{
		queue.KindAdd: func(ctx context.Context, job *queue.Job) error {
			var p ingestPayload
			if err := json.Unmarshal(job.Payload, &p); err != nil {
				return fmt.Errorf("unmarshal add payload: %w", err)
			}
			_, err := a.Add(ctx, IngestRequest{
				SourceID: p.SourceID,
				Content:  p.Content,
				Mode:     p.Mode,
				Size:     p.Size,
				ModTime:  p.ModTime,
			})
			return err
		},
		queue.KindUpdate: func(ctx context.Context, job *queue.Job) error {
			var p ingestPayload
			if err := json.Unmarshal(job.Payload, &p); err != nil {
				return fmt.Errorf("unmarshal update payload: %w", err)
			}
			_, err := a.Update(ctx, IngestRequest{
				SourceID: p.SourceID,
				Content:  p.Content,
				Mode:     p.Mode,
				Size:     p.Size,
				ModTime:  p.ModTime,
			})
			return err
		},
		queue.KindRemove: func(ctx context.Context, job *queue.Job) error {
			var p removePayload
			if err := json.Unmarshal(job.Payload, &p); err != nil {
				return fmt.Errorf("unmarshal remove payload: %w", err)
			}
			return a.Remove(ctx, p.DocID)
		},
		queue.KindMaintenance: func(ctx context.Context, job *queue.Job) error {
			_, err := a.MaintenanceCleanup(ctx)
			return err
		},
	}
}
