package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/azmainm/standup-tickets/internal/rag"
	"github.com/azmainm/standup-tickets/internal/simindex"
	"github.com/azmainm/standup-tickets/internal/task"
)

// stubIndex returns canned matches keyed by a substring of the query.
type stubIndex struct {
	matches map[string][]simindex.Match
	err     error
	queries []string
}

func (s *stubIndex) Search(_ context.Context, query string, _ int, _ float64) ([]simindex.Match, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	for key, matches := range s.matches {
		if strings.Contains(strings.ToLower(query), key) {
			return matches, nil
		}
	}
	return nil, nil
}

// stubCompleter replies with a fixed adjudication verdict.
type stubCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, _, user string) (string, error) {
	s.prompts = append(s.prompts, user)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

// stubLookup resolves ticket ids from a fixed map, standing in for the
// full task store.
type stubLookup struct {
	tasks map[string]*task.Task
}

func (s *stubLookup) GetTaskByTicketID(ticketID string) (*task.Task, error) {
	t, ok := s.tasks[ticketID]
	if !ok {
		return nil, fmt.Errorf("task not found: %s", ticketID)
	}
	return t, nil
}

// stubRetriever returns a fixed context and records whether retrieval
// was scoped.
type stubRetriever struct {
	result *rag.Context
	err    error
	scoped []bool
}

func (s *stubRetriever) RetrieveContext(_ context.Context, _ string, opts rag.Options) (*rag.Context, error) {
	s.scoped = append(s.scoped, opts.Scoped != nil)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &rag.Context{}, nil
}
