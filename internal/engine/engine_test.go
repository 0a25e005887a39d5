package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/azmainm/standup-tickets/internal/extract"
	"github.com/azmainm/standup-tickets/internal/task"
	"github.com/azmainm/standup-tickets/internal/transcript"
)

func rawRecords(pairs ...string) []transcript.RawRecord {
	var records []transcript.RawRecord
	for i := 0; i+1 < len(pairs); i += 2 {
		records = append(records, transcript.RawRecord{Speaker: pairs[i], Text: pairs[i+1]})
	}
	return records
}

func standupRecords() []transcript.RawRecord {
	return rawRecords(
		"Alice", "Create a new task for Bob to fix the login redirect loop.",
		"Bob", "Sure. Also SP-7 is done, I closed it yesterday.",
	)
}

func testDeps(store *memStore, extractor *fakeExtractor, detector *fakeDetector, reconciler *fakeReconciler) (Deps, *fakeIndex, *fakeAllocator) {
	index := &fakeIndex{}
	allocator := &fakeAllocator{}
	return Deps{
		Store:     store,
		Extractor: extractor,
		Detector:  detector,
		Matcher:   reconciler,
		Index:     index,
		Chunks:    &fakeChunks{},
		Allocator: allocator,
	}, index, allocator
}

func TestProcessTranscript(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a transcript with a new task and a completion When processed Then both apply", func(t *testing.T) {
		store := newMemStore(task.Task{
			TicketID:    "SP-7",
			Description: "Migrate billing database",
			Assignee:    "Bob",
			WorkType:    task.WorkCoding,
			Status:      task.StatusInProgress,
		})
		extractor := &fakeExtractor{result: &extract.Result{
			Candidates: []task.Candidate{{
				Description:  "Fix the login redirect loop",
				Assignee:     "Bob",
				WorkType:     task.WorkBug,
				Category:     task.CategoryNewTask,
				TicketIDHint: task.NoTicketHint,
			}},
			Attendees: []string{"Alice", "Bob"},
		}}
		detector := &fakeDetector{events: []task.StatusChangeEvent{{
			TicketID:   "SP-7",
			NewStatus:  task.StatusCompleted,
			Confidence: 0.95,
			Speaker:    "Bob",
		}}}
		deps, index, allocator := testDeps(store, extractor, detector, &fakeReconciler{})

		summary, err := New(deps).ProcessTranscript(ctx, "standup-1", standupRecords())
		if err != nil {
			t.Fatalf("ProcessTranscript failed: %v", err)
		}

		if summary.Skipped {
			t.Fatal("first run must not be skipped")
		}
		if len(summary.Created) != 1 || summary.Created[0] != "SP-1" {
			t.Errorf("expected SP-1 created, got %v", summary.Created)
		}
		if !allocator.initialized {
			t.Error("allocator must be initialized before allocation")
		}
		if got := store.get("SP-7").Status; got != task.StatusCompleted {
			t.Errorf("detector completion not applied, SP-7 status = %q", got)
		}
		if got := store.get("SP-1"); got.Assignee != "Bob" || got.Status != task.StatusTodo {
			t.Errorf("created task wrong: %+v", got)
		}
		if len(index.added) != 1 || index.added[0] != "SP-1" {
			t.Errorf("created task must be indexed, got %v", index.added)
		}
		if len(summary.StatusChanges) != 1 {
			t.Errorf("status change missing from summary: %+v", summary)
		}
	})

	t.Run("Given the same content twice When reprocessed Then the second run is a recorded no-op", func(t *testing.T) {
		store := newMemStore()
		extractor := &fakeExtractor{result: &extract.Result{
			Candidates: []task.Candidate{{
				Description:  "Fix the login redirect loop",
				Assignee:     "Bob",
				WorkType:     task.WorkBug,
				Category:     task.CategoryNewTask,
				TicketIDHint: task.NoTicketHint,
			}},
		}}
		deps, _, _ := testDeps(store, extractor, &fakeDetector{}, &fakeReconciler{})
		engine := New(deps)

		first, err := engine.ProcessTranscript(ctx, "standup-1", standupRecords())
		if err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		if len(first.Created) != 1 {
			t.Fatalf("expected one create, got %v", first.Created)
		}

		second, err := engine.ProcessTranscript(ctx, "standup-1-retry", standupRecords())
		if err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if !second.Skipped || second.SkipReason == "" {
			t.Errorf("re-run must be skipped with a reason, got %+v", second)
		}
		if len(second.Created) != 0 {
			t.Errorf("re-run must not create, got %v", second.Created)
		}
		if extractor.calls != 1 {
			t.Errorf("no extraction on the skipped run, got %d calls", extractor.calls)
		}
	})

	t.Run("Given an empty transcript When processed Then ErrEmptyTranscript", func(t *testing.T) {
		deps, _, _ := testDeps(newMemStore(), &fakeExtractor{}, &fakeDetector{}, &fakeReconciler{})

		_, err := New(deps).ProcessTranscript(ctx, "standup-1", rawRecords("Alice", "   "))
		if !errors.Is(err, ErrEmptyTranscript) {
			t.Errorf("expected ErrEmptyTranscript, got %v", err)
		}
	})

	t.Run("Given extraction failure When processed Then nothing is applied and nothing is marked", func(t *testing.T) {
		store := newMemStore()
		extractor := &fakeExtractor{err: errors.New("api unavailable")}
		detector := &fakeDetector{events: []task.StatusChangeEvent{{
			TicketID: "SP-7", NewStatus: task.StatusCompleted,
		}}}
		deps, _, _ := testDeps(store, extractor, detector, &fakeReconciler{})
		engine := New(deps)

		_, err := engine.ProcessTranscript(ctx, "standup-1", standupRecords())
		if !errors.Is(err, ErrExtractionFailed) {
			t.Fatalf("expected ErrExtractionFailed, got %v", err)
		}

		// The failed run must be retryable: the content hash was not
		// recorded, so a later attempt processes it in full.
		extractor.err = nil
		summary, err := engine.ProcessTranscript(ctx, "standup-1", standupRecords())
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if summary.Skipped {
			t.Error("failed run must not mark the transcript processed")
		}
	})

	t.Run("Given a detector event for an updated ticket When processed Then the detector status wins", func(t *testing.T) {
		store := newMemStore(task.Task{
			TicketID:    "SP-7",
			Description: "Migrate billing database",
			Assignee:    "Bob",
			WorkType:    task.WorkCoding,
			Status:      task.StatusInProgress,
		})
		extractor := &fakeExtractor{result: &extract.Result{
			Candidates: []task.Candidate{{
				Description:  "wrapping up the billing migration",
				Assignee:     "Bob",
				WorkType:     task.WorkCoding,
				Category:     task.CategoryUpdateTask,
				TicketIDHint: "SP-7",
				Status:       task.StatusInProgress,
			}},
		}}
		detector := &fakeDetector{events: []task.StatusChangeEvent{{
			TicketID: "SP-7", NewStatus: task.StatusCompleted, Confidence: 0.95,
		}}}
		reconciler := &fakeReconciler{decisions: map[string]task.MatchDecision{
			"wrapping up the billing migration": {
				Action:            task.ActionUpdate,
				MatchedTicketID:   "SP-7",
				Confidence:        1.0,
				MergedDescription: "Migrate billing database\n\nUpdate: wrapping up the billing migration",
				MergeStrategy:     task.MergeBasic,
			},
		}}
		deps, _, _ := testDeps(store, extractor, detector, reconciler)

		summary, err := New(deps).ProcessTranscript(ctx, "standup-1", standupRecords())
		if err != nil {
			t.Fatalf("ProcessTranscript failed: %v", err)
		}

		got := store.get("SP-7")
		if got.Status != task.StatusCompleted {
			t.Errorf("detector signal must outrank the candidate status, got %q", got.Status)
		}
		if !strings.HasPrefix(got.Description, "Migrate billing database") {
			t.Errorf("merge must keep the existing description prefix, got %q", got.Description)
		}
		if len(summary.Updated) != 1 || summary.Updated[0] != "SP-7" {
			t.Errorf("expected SP-7 updated, got %v", summary.Updated)
		}
	})

	t.Run("Given a candidate status behind the tracked one When processed Then it does not regress", func(t *testing.T) {
		store := newMemStore(task.Task{
			TicketID:    "SP-7",
			Description: "Migrate billing database",
			Assignee:    "Bob",
			WorkType:    task.WorkCoding,
			Status:      task.StatusInProgress,
		})
		extractor := &fakeExtractor{result: &extract.Result{
			Candidates: []task.Candidate{{
				Description:  "billing migration still on the list",
				Assignee:     "Bob",
				WorkType:     task.WorkCoding,
				Category:     task.CategoryUpdateTask,
				TicketIDHint: "SP-7",
				Status:       task.StatusTodo,
			}},
		}}
		reconciler := &fakeReconciler{decisions: map[string]task.MatchDecision{
			"billing migration still on the list": {
				Action:            task.ActionUpdate,
				MatchedTicketID:   "SP-7",
				Confidence:        1.0,
				MergedDescription: "Migrate billing database\n\nUpdate: billing migration still on the list",
				MergeStrategy:     task.MergeBasic,
			},
		}}
		deps, _, _ := testDeps(store, extractor, &fakeDetector{}, reconciler)

		if _, err := New(deps).ProcessTranscript(ctx, "standup-1", standupRecords()); err != nil {
			t.Fatalf("ProcessTranscript failed: %v", err)
		}
		if got := store.get("SP-7").Status; got != task.StatusInProgress {
			t.Errorf("inferred status must not move backward, got %q", got)
		}
	})

	t.Run("Given a candidate status ahead of the tracked one When processed Then it advances", func(t *testing.T) {
		store := newMemStore(task.Task{
			TicketID:    "SP-7",
			Description: "Migrate billing database",
			Assignee:    "Bob",
			WorkType:    task.WorkCoding,
			Status:      task.StatusTodo,
		})
		extractor := &fakeExtractor{result: &extract.Result{
			Candidates: []task.Candidate{{
				Description:  "started on the billing migration",
				Assignee:     "Bob",
				WorkType:     task.WorkCoding,
				Category:     task.CategoryUpdateTask,
				TicketIDHint: "SP-7",
				Status:       task.StatusInProgress,
			}},
		}}
		reconciler := &fakeReconciler{decisions: map[string]task.MatchDecision{
			"started on the billing migration": {
				Action:            task.ActionUpdate,
				MatchedTicketID:   "SP-7",
				Confidence:        1.0,
				MergedDescription: "Migrate billing database\n\nUpdate: started on the billing migration",
				MergeStrategy:     task.MergeBasic,
			},
		}}
		deps, _, _ := testDeps(store, extractor, &fakeDetector{}, reconciler)

		if _, err := New(deps).ProcessTranscript(ctx, "standup-1", standupRecords()); err != nil {
			t.Fatalf("ProcessTranscript failed: %v", err)
		}
		if got := store.get("SP-7").Status; got != task.StatusInProgress {
			t.Errorf("forward status must apply, got %q", got)
		}
	})

	t.Run("Given a failed insert When processing continues Then other mutations still apply", func(t *testing.T) {
		store := newMemStore(task.Task{
			TicketID:    "SP-1",
			Description: "Occupies the first allocated id",
			Assignee:    "Alice",
			WorkType:    task.WorkCoding,
			Status:      task.StatusTodo,
		})
		extractor := &fakeExtractor{result: &extract.Result{
			Candidates: []task.Candidate{
				{
					Description:  "Fix the login redirect loop",
					Assignee:     "Bob",
					WorkType:     task.WorkBug,
					Category:     task.CategoryNewTask,
					TicketIDHint: task.NoTicketHint,
				},
				{
					Description:  "Add alerting for the export job",
					Assignee:     "Bob",
					WorkType:     task.WorkCoding,
					Category:     task.CategoryNewTask,
					TicketIDHint: task.NoTicketHint,
				},
			},
		}}
		deps, _, _ := testDeps(store, extractor, &fakeDetector{}, &fakeReconciler{})

		summary, err := New(deps).ProcessTranscript(ctx, "standup-1", standupRecords())
		if err != nil {
			t.Fatalf("ProcessTranscript failed: %v", err)
		}

		// SP-1 collides with the pre-existing row; SP-2 still lands.
		if len(summary.Failures) != 1 || summary.Failures[0].Action != task.ActionCreate {
			t.Fatalf("expected one create failure, got %+v", summary.Failures)
		}
		if len(summary.Created) != 1 || summary.Created[0] != "SP-2" {
			t.Errorf("the other create must still apply, got %v", summary.Created)
		}
	})

	t.Run("Given a degraded decision When processed Then the summary records the stage", func(t *testing.T) {
		store := newMemStore(task.Task{
			TicketID:    "SP-7",
			Description: "Migrate billing database",
			Assignee:    "Bob",
			WorkType:    task.WorkCoding,
			Status:      task.StatusInProgress,
		})
		extractor := &fakeExtractor{result: &extract.Result{
			Candidates: []task.Candidate{{
				Description:  "billing migration nearly there",
				Assignee:     "Bob",
				WorkType:     task.WorkCoding,
				Category:     task.CategoryUpdateTask,
				TicketIDHint: task.NoTicketHint,
			}},
		}}
		reconciler := &fakeReconciler{decisions: map[string]task.MatchDecision{
			"billing migration nearly there": {
				Action:            task.ActionUpdate,
				MatchedTicketID:   "SP-7",
				Confidence:        0.75,
				Similarity:        0.75,
				MergedDescription: "Migrate billing database\n\nbilling migration nearly there",
				MergeStrategy:     task.MergeRawAppend,
				Degraded:          true,
			},
		}}
		deps, _, _ := testDeps(store, extractor, &fakeDetector{}, reconciler)

		summary, err := New(deps).ProcessTranscript(ctx, "standup-1", standupRecords())
		if err != nil {
			t.Fatalf("ProcessTranscript failed: %v", err)
		}

		found := false
		for _, stage := range summary.DegradedStages {
			if stage == "adjudication" {
				found = true
			}
		}
		if !found {
			t.Errorf("degraded stage not reported: %v", summary.DegradedStages)
		}
		if len(summary.Updated) != 1 {
			t.Errorf("degraded update must still apply, got %v", summary.Updated)
		}
	})

	t.Run("Given a detector event for an unknown ticket When processed Then it fails softly", func(t *testing.T) {
		store := newMemStore()
		detector := &fakeDetector{events: []task.StatusChangeEvent{{
			TicketID: "SP-99", NewStatus: task.StatusCompleted,
		}}}
		deps, _, _ := testDeps(store, &fakeExtractor{}, detector, &fakeReconciler{})

		summary, err := New(deps).ProcessTranscript(ctx, "standup-1", standupRecords())
		if err != nil {
			t.Fatalf("ProcessTranscript failed: %v", err)
		}
		if len(summary.Failures) != 1 || summary.Failures[0].TicketID != "SP-99" {
			t.Errorf("unknown ticket must surface as a failure, got %+v", summary.Failures)
		}
	})

	t.Run("Given chunk indexing failure When processed Then the run continues degraded", func(t *testing.T) {
		store := newMemStore()
		extractor := &fakeExtractor{result: &extract.Result{
			Candidates: []task.Candidate{{
				Description:  "Fix the login redirect loop",
				Assignee:     "Bob",
				WorkType:     task.WorkBug,
				Category:     task.CategoryNewTask,
				TicketIDHint: task.NoTicketHint,
			}},
		}}
		index := &fakeIndex{}
		deps := Deps{
			Store:     store,
			Extractor: extractor,
			Detector:  &fakeDetector{},
			Matcher:   &fakeReconciler{},
			Index:     index,
			Chunks:    &fakeChunks{err: errors.New("embedder down")},
			Allocator: &fakeAllocator{},
		}

		summary, err := New(deps).ProcessTranscript(ctx, "standup-1", standupRecords())
		if err != nil {
			t.Fatalf("ProcessTranscript failed: %v", err)
		}
		if len(summary.Created) != 1 {
			t.Errorf("create must proceed without chunk context, got %v", summary.Created)
		}
		found := false
		for _, stage := range summary.DegradedStages {
			if stage == "context-retrieval" {
				found = true
			}
		}
		if !found {
			t.Errorf("context degradation not reported: %v", summary.DegradedStages)
		}
	})
}
