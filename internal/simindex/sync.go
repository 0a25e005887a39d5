package simindex

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/azmainm/standup-tickets/internal/task"
)

// Synchronize reconciles the index against out-of-band edits: tasks
// whose last_modified advanced past their last embedding are
// re-embedded. Entries are only added or updated here, never silently
// dropped for tasks that still exist.
func (idx *Index) Synchronize(ctx context.Context, tasks []task.Task) error {
	var resynced int
	for i := range tasks {
		t := &tasks[i]

		idx.mu.RLock()
		embeddedAt, known := idx.embedded[t.TicketID]
		idx.mu.RUnlock()

		if known && !t.LastModified.After(embeddedAt) {
			continue
		}
		if err := idx.Add(ctx, t); err != nil {
			// One stale entry must not block the rest of the sync.
			log.Printf("Warning: index sync skipped %s: %v", t.TicketID, err)
			continue
		}
		resynced++
	}
	if resynced > 0 {
		log.Printf("Similarity index synchronized: %d task(s) re-embedded", resynced)
	}
	return nil
}

// Rebuild discards the index contents and regenerates every entry from
// the authoritative task records.
func (idx *Index) Rebuild(ctx context.Context, tasks []task.Task) error {
	idx.mu.Lock()
	if _, err := idx.db.ExecContext(ctx, "DELETE FROM task_vectors"); err != nil {
		idx.mu.Unlock()
		return fmt.Errorf("clear task vectors: %w", err)
	}
	idx.vectors = make(map[string][]float32)
	idx.embedded = make(map[string]time.Time)
	idx.mu.Unlock()

	for i := range tasks {
		if err := idx.Add(ctx, &tasks[i]); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
	}
	return nil
}
