package worker

import (
	"context"
	"fmt"
	"time"

	"pantry/internal/blob"
	"pantry/internal/metrics"
)

// BlobSweeper deletes ingestion blobs older than the retention period. It
// catches blobs whose compensating delete failed or never ran.
type BlobSweeper struct {
	store     blob.Store
	prefix    string
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewBlobSweeper(store blob.Store, prefix string, retention, interval time.Duration) *BlobSweeper {
	return &BlobSweeper{
		store:     store,
		prefix:    prefix,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

func (w *BlobSweeper) StartWorker(ctx context.Context) {
	if w.interval <= 0 || w.retention <= 0 {
		fmt.Println("[BlobSweeper] Disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns the number of deleted blobs.
func (w *BlobSweeper) Sweep(ctx context.Context) int {
	cutoff := w.now().Add(-w.retention)
	keys, err := w.store.ListOlderThan(ctx, w.prefix, cutoff)
	if err != nil {
		fmt.Printf("[BlobSweeper] Error listing blobs: %v\n", err)
		return 0
	}

	deleted := 0
	for _, key := range keys {
		if err := w.store.Delete(ctx, key); err != nil {
			fmt.Printf("[BlobSweeper] Error deleting %s: %v\n", key, err)
			continue
		}
		deleted++
	}

	metrics.BlobsSwept(deleted)
	if deleted > 0 {
		fmt.Printf("[BlobSweeper] Deleted %d blob(s) older than %s\n", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted
}
