package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/azmainm/standup-tickets/internal/extract"
	"github.com/azmainm/standup-tickets/internal/rag"
	"github.com/azmainm/standup-tickets/internal/reconcile"
	"github.com/azmainm/standup-tickets/internal/store"
	"github.com/azmainm/standup-tickets/internal/task"
	"github.com/azmainm/standup-tickets/internal/transcript"
)

// memStore is an in-memory TaskStore for engine tests.
type memStore struct {
	mu        sync.Mutex
	tasks     map[string]*task.Task
	processed map[string]string
}

func newMemStore(seed ...task.Task) *memStore {
	s := &memStore{
		tasks:     make(map[string]*task.Task),
		processed: make(map[string]string),
	}
	for i := range seed {
		t := seed[i]
		s.tasks[t.TicketID] = &t
	}
	return s
}

func (s *memStore) FindActiveTasks() ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []task.Task
	for _, t := range s.tasks {
		if t.Status != task.StatusCompleted {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memStore) GetTaskByTicketID(ticketID string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[ticketID]
	if !ok {
		return nil, fmt.Errorf("task not found: %s", ticketID)
	}
	copied := *t
	return &copied, nil
}

func (s *memStore) InsertTask(t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.TicketID]; exists {
		return fmt.Errorf("duplicate ticket id: %s", t.TicketID)
	}
	copied := *t
	s.tasks[t.TicketID] = &copied
	return nil
}

func (s *memStore) UpdateTaskByTicketID(ticketID string, patch store.TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[ticketID]
	if !ok {
		return fmt.Errorf("update task %s: not found", ticketID)
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Assignee != nil {
		t.Assignee = *patch.Assignee
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.EstimatedTime != nil {
		t.EstimatedTime = *patch.EstimatedTime
	}
	if patch.TimeSpent != nil {
		t.TimeSpent = *patch.TimeSpent
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.StoryPoints != nil {
		t.StoryPoints = *patch.StoryPoints
	}
	return nil
}

func (s *memStore) WasProcessed(contentHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[contentHash]
	return ok, nil
}

func (s *memStore) MarkProcessed(contentHash, transcriptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[contentHash] = transcriptID
	return nil
}

func (s *memStore) get(ticketID string) task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[ticketID]
}

// fakeExtractor returns canned candidates.
type fakeExtractor struct {
	result *extract.Result
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []transcript.Line, participants []string) (*extract.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &extract.Result{Attendees: participants}, nil
	}
	return f.result, nil
}

// fakeDetector returns canned status events.
type fakeDetector struct {
	events []task.StatusChangeEvent
}

func (f *fakeDetector) Detect([]transcript.Line) []task.StatusChangeEvent {
	return f.events
}

// fakeReconciler turns each candidate into a canned decision by
// description.
type fakeReconciler struct {
	decisions map[string]task.MatchDecision
	requests  []reconcile.Request
}

func (f *fakeReconciler) Reconcile(_ context.Context, req reconcile.Request) []task.MatchDecision {
	f.requests = append(f.requests, req)
	var out []task.MatchDecision
	for _, c := range req.Candidates {
		if d, ok := f.decisions[c.Description]; ok {
			d.Candidate = c
			out = append(out, d)
			continue
		}
		out = append(out, task.MatchDecision{
			Candidate:  c,
			Action:     task.ActionCreate,
			Confidence: 1.0,
		})
	}
	return out
}

// fakeIndex records index maintenance calls.
type fakeIndex struct {
	added   []string
	synced  int
	syncErr error
	addErr  error
}

func (f *fakeIndex) Add(_ context.Context, t *task.Task) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, t.TicketID)
	return nil
}

func (f *fakeIndex) Synchronize(_ context.Context, _ []task.Task) error {
	f.synced++
	return f.syncErr
}

// fakeChunks returns an empty scoped index.
type fakeChunks struct {
	err   error
	calls int
}

func (f *fakeChunks) IndexTranscript(_ context.Context, transcriptID string, _ []transcript.Line, _ bool) (*rag.TranscriptIndex, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &rag.TranscriptIndex{TranscriptID: transcriptID}, nil
}

// fakeAllocator hands out sequential ids.
type fakeAllocator struct {
	next        int
	initialized bool
	allocErr    error
}

func (f *fakeAllocator) Initialize() error {
	f.initialized = true
	return nil
}

func (f *fakeAllocator) AllocateNext() (string, error) {
	if f.allocErr != nil {
		return "", f.allocErr
	}
	f.next++
	return task.FormatTicketID("SP", f.next), nil
}
