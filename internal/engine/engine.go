// Package engine orchestrates one transcript run: normalize, extract
// and detect in parallel, reconcile against the task store, allocate
// identifiers for new work, and apply the resulting mutation batch.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/azmainm/standup-tickets/internal/extract"
	"github.com/azmainm/standup-tickets/internal/rag"
	"github.com/azmainm/standup-tickets/internal/reconcile"
	"github.com/azmainm/standup-tickets/internal/store"
	"github.com/azmainm/standup-tickets/internal/task"
	"github.com/azmainm/standup-tickets/internal/transcript"
)

// TaskStore is the persistent task store collaborator.
type TaskStore interface {
	FindActiveTasks() ([]task.Task, error)
	GetTaskByTicketID(ticketID string) (*task.Task, error)
	InsertTask(t *task.Task) error
	UpdateTaskByTicketID(ticketID string, patch store.TaskPatch) error
	WasProcessed(contentHash string) (bool, error)
	MarkProcessed(contentHash, transcriptID string) error
}

// Extractor produces candidates from a transcript.
type Extractor interface {
	Extract(ctx context.Context, lines []transcript.Line, participants []string) (*extract.Result, error)
}

// StatusDetector finds explicit status-change phrasing.
type StatusDetector interface {
	Detect(lines []transcript.Line) []task.StatusChangeEvent
}

// Reconciler resolves candidates to decisions.
type Reconciler interface {
	Reconcile(ctx context.Context, req reconcile.Request) []task.MatchDecision
}

// SimilarityIndex is the index maintenance surface the engine uses.
type SimilarityIndex interface {
	Add(ctx context.Context, t *task.Task) error
	Synchronize(ctx context.Context, tasks []task.Task) error
}

// ChunkIndexer builds the transcript-scoped chunk index.
type ChunkIndexer interface {
	IndexTranscript(ctx context.Context, transcriptID string, lines []transcript.Line, persist bool) (*rag.TranscriptIndex, error)
}

// Allocator hands out ticket identifiers.
type Allocator interface {
	Initialize() error
	AllocateNext() (string, error)
}

// Deps holds the engine's collaborators.
type Deps struct {
	Store     TaskStore
	Extractor Extractor
	Detector  StatusDetector
	Matcher   Reconciler
	Index     SimilarityIndex
	Chunks    ChunkIndexer
	Allocator Allocator

	// PersistChunks writes transcript chunks to the durable
	// cross-meeting store in addition to the per-run scoped index.
	PersistChunks bool
}

// Engine runs the extraction-and-reconciliation pipeline. One run per
// transcript; runs against the same store must be serialized by the
// caller because the similarity index is single-writer.
type Engine struct {
	deps Deps
}

// New creates an engine with the given collaborators.
func New(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// ProcessTranscript executes one full run and returns the summary.
// Each CREATE/UPDATE is a single atomic store operation applied
// independently; a failed mutation is reported on the summary without
// blocking the others.
func (e *Engine) ProcessTranscript(ctx context.Context, transcriptID string, records []transcript.RawRecord) (*Summary, error) {
	lines := transcript.Normalize(records)
	if len(lines) == 0 {
		return nil, ErrEmptyTranscript
	}

	scope := newScope(transcriptID, lines)
	participants := transcript.Participants(lines)
	summary := &Summary{TranscriptID: transcriptID, Participants: participants}

	// Re-processing an already applied transcript is a recorded no-op,
	// not a duplicate-creating second pass.
	processed, err := e.deps.Store.WasProcessed(scope.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("ledger check: %w", err)
	}
	if processed {
		summary.Skipped = true
		summary.SkipReason = "transcript content already processed"
		return summary, nil
	}

	if err := e.deps.Allocator.Initialize(); err != nil {
		return nil, fmt.Errorf("allocator: %w", err)
	}

	snapshot, err := e.deps.Store.FindActiveTasks()
	if err != nil {
		return nil, fmt.Errorf("load active tasks: %w", err)
	}

	// Catch up on out-of-band edits before matching against the index.
	if err := e.deps.Index.Synchronize(ctx, snapshot); err != nil {
		log.Printf("Warning: index synchronization failed: %v", err)
		summary.degrade("index-sync")
	}

	// Extraction and status detection are independent of each other.
	var (
		wg         sync.WaitGroup
		extracted  *extract.Result
		extractErr error
		events     []task.StatusChangeEvent
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		extracted, extractErr = e.deps.Extractor.Extract(ctx, lines, participants)
	}()
	go func() {
		defer wg.Done()
		events = e.deps.Detector.Detect(lines)
	}()
	wg.Wait()

	if extractErr != nil {
		// Fail closed: nothing has been applied yet.
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, extractErr)
	}
	summary.Attendees = extracted.Attendees
	summary.StatusChanges = events

	// Build the transcript-scoped chunk index for merge grounding.
	scope.ChunkIndex, err = e.deps.Chunks.IndexTranscript(ctx, transcriptID, lines, e.deps.PersistChunks)
	if err != nil {
		log.Printf("Warning: transcript chunk indexing failed: %v", err)
		summary.degrade("context-retrieval")
	}

	decisions := e.deps.Matcher.Reconcile(ctx, reconcile.Request{
		Candidates: extracted.Candidates,
		Existing:   snapshot,
		Scoped:     scope.ChunkIndex,
	})
	summary.Decisions = decisions
	for _, d := range decisions {
		if d.Degraded {
			summary.degrade("adjudication")
			break
		}
	}

	detectorStatus := make(map[string]string, len(events))
	for _, ev := range events {
		detectorStatus[ev.TicketID] = ev.NewStatus
	}

	e.applyUpdates(ctx, decisions, detectorStatus, summary)
	e.applyCreates(ctx, decisions, summary)
	e.applyStatusChanges(events, summary)

	if err := e.deps.Store.MarkProcessed(scope.ContentHash, transcriptID); err != nil {
		log.Printf("Warning: could not record processed transcript: %v", err)
		summary.degrade("ledger")
	}

	return summary, nil
}

func (e *Engine) applyUpdates(ctx context.Context, decisions []task.MatchDecision, detectorStatus map[string]string, summary *Summary) {
	for _, d := range decisions {
		if d.Action != task.ActionUpdate {
			continue
		}
		existing, err := e.deps.Store.GetTaskByTicketID(d.MatchedTicketID)
		if err != nil {
			summary.fail(d.MatchedTicketID, task.ActionUpdate, err)
			continue
		}

		updated := reconcile.ApplyUpdate(*existing, d)
		patch := store.TaskPatch{
			Description: &updated.Description,
		}
		if updated.TimeSpent != existing.TimeSpent {
			patch.TimeSpent = &updated.TimeSpent
		}
		if updated.EstimatedTime != existing.EstimatedTime {
			patch.EstimatedTime = &updated.EstimatedTime
		}
		if updated.Priority != existing.Priority {
			patch.Priority = &updated.Priority
		}
		if updated.StoryPoints != existing.StoryPoints {
			patch.StoryPoints = &updated.StoryPoints
		}
		// A direct detector signal for this ticket outranks a status
		// merely inferred by extraction. Inferred statuses only move the
		// machine forward: an extraction reply claiming To-do for a task
		// already in progress is noise, not a regression.
		if d.Candidate.Status != "" {
			_, explicit := detectorStatus[d.MatchedTicketID]
			if !explicit && task.StatusRank(d.Candidate.Status) > task.StatusRank(existing.Status) {
				patch.Status = &d.Candidate.Status
			}
		}

		if err := e.deps.Store.UpdateTaskByTicketID(d.MatchedTicketID, patch); err != nil {
			summary.fail(d.MatchedTicketID, task.ActionUpdate, err)
			continue
		}
		summary.Updated = append(summary.Updated, d.MatchedTicketID)

		updated.LastModified = time.Now().UTC()
		if err := e.deps.Index.Add(ctx, &updated); err != nil {
			log.Printf("Warning: index not updated for %s: %v", d.MatchedTicketID, err)
			summary.degrade("similarity-index")
		}
	}
}

func (e *Engine) applyCreates(ctx context.Context, decisions []task.MatchDecision, summary *Summary) {
	groups := reconcile.GroupCreates(decisions)
	for _, key := range reconcile.SortedGroupKeys(groups) {
		for _, d := range groups[key] {
			t := reconcile.NewTaskFromDecision(d)

			ticketID, err := e.deps.Allocator.AllocateNext()
			if err != nil {
				summary.fail("", task.ActionCreate, err)
				continue
			}
			t.TicketID = ticketID

			if err := e.deps.Store.InsertTask(&t); err != nil {
				// The allocated id is abandoned: gaps are acceptable,
				// duplicates are not.
				summary.fail(ticketID, task.ActionCreate, err)
				continue
			}
			summary.Created = append(summary.Created, ticketID)

			if err := e.deps.Index.Add(ctx, &t); err != nil {
				log.Printf("Warning: index not updated for %s: %v", ticketID, err)
				summary.degrade("similarity-index")
			}
		}
	}
}

func (e *Engine) applyStatusChanges(events []task.StatusChangeEvent, summary *Summary) {
	for _, ev := range events {
		patch := store.TaskPatch{Status: &ev.NewStatus}
		if err := e.deps.Store.UpdateTaskByTicketID(ev.TicketID, patch); err != nil {
			summary.fail(ev.TicketID, "STATUS", err)
		}
	}
}
