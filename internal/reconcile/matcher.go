// Package reconcile decides, for every extracted candidate, whether it
// names an existing tracked task or brand new work, and merges new
// information into matched tasks. Explicit identifier evidence
// dominates similarity evidence, which dominates LLM adjudication.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/azmainm/standup-tickets/internal/llm"
	"github.com/azmainm/standup-tickets/internal/rag"
	"github.com/azmainm/standup-tickets/internal/simindex"
	"github.com/azmainm/standup-tickets/internal/task"
)

// DefaultSimilarityThreshold is the minimum cosine similarity for a
// provisional match.
const DefaultSimilarityThreshold = 0.7

// SimilaritySearcher is the nearest-neighbor capability of the
// similarity index.
type SimilaritySearcher interface {
	Search(ctx context.Context, query string, k int, threshold float64) ([]simindex.Match, error)
}

// ContextRetriever grounds merged descriptions in transcript passages.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string, opts rag.Options) (*rag.Context, error)
}

// TaskLookup resolves a ticket id against the full store, completed
// tasks included. The reconciliation snapshot holds only active tasks,
// but a spoken identifier must resolve to its ticket even after that
// ticket was closed: completion is a status, not a deletion, and
// re-creating known work under a new id is the one failure this
// package exists to prevent.
type TaskLookup interface {
	GetTaskByTicketID(ticketID string) (*task.Task, error)
}

// Matcher resolves candidates to CREATE or UPDATE decisions.
type Matcher struct {
	index     SimilaritySearcher
	completer llm.Completer
	retriever ContextRetriever
	lookup    TaskLookup
	prefix    string
	threshold float64
}

// NewMatcher creates a matcher. retriever may be nil, in which case
// merges skip the RAG-enhanced strategy. lookup may be nil, in which
// case explicit identifiers resolve only against the request snapshot.
func NewMatcher(index SimilaritySearcher, completer llm.Completer, retriever ContextRetriever, lookup TaskLookup, prefix string, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Matcher{index: index, completer: completer, retriever: retriever, lookup: lookup, prefix: prefix, threshold: threshold}
}

// Request is one reconciliation batch.
type Request struct {
	Candidates []task.Candidate
	Existing   []task.Task
	// Scoped restricts merge-grounding retrieval to the current
	// transcript. Nil falls back to the cross-meeting store.
	Scoped *rag.TranscriptIndex
}

// Reconcile resolves every candidate to exactly one decision. A failure
// in the adjudication call degrades that candidate's decision rather
// than aborting the batch.
func (m *Matcher) Reconcile(ctx context.Context, req Request) []task.MatchDecision {
	byTicket := make(map[string]*task.Task, len(req.Existing))
	for i := range req.Existing {
		byTicket[req.Existing[i].TicketID] = &req.Existing[i]
	}

	decisions := make([]task.MatchDecision, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		decisions = append(decisions, m.resolve(ctx, c, req, byTicket))
	}
	return decisions
}

func (m *Matcher) resolve(ctx context.Context, c task.Candidate, req Request, byTicket map[string]*task.Task) task.MatchDecision {
	// 1. Explicit identifier path. A spoken ticket id that resolves to
	// an existing task is always an update, whatever the embeddings say.
	// The snapshot covers active tasks only, so hints additionally
	// resolve through the full store: naming a completed ticket updates
	// that ticket, it does not mint a duplicate.
	if c.TicketIDHint != task.NoTicketHint {
		if id, ok := task.NormalizeTicketID(c.TicketIDHint, m.prefix); ok {
			existing, found := byTicket[id]
			if !found && m.lookup != nil {
				if t, err := m.lookup.GetTaskByTicketID(id); err == nil {
					existing, found = t, true
				}
			}
			if found {
				return m.update(ctx, c, existing, req.Scoped, task.MatchDecision{
					Action:          task.ActionUpdate,
					MatchedTicketID: id,
					Confidence:      1.0,
					Reasoning:       "explicit ticket reference in transcript",
				})
			}
		}
	}

	// 2. Similarity path.
	var provisional *task.Task
	var similarity float64
	matches, err := m.index.Search(ctx, candidateQuery(c), 1, m.threshold)
	if err != nil {
		log.Printf("Warning: similarity search failed, falling back to adjudication: %v", err)
	}
	if len(matches) > 0 {
		if t, found := byTicket[matches[0].TicketID]; found {
			provisional = t
			similarity = matches[0].Similarity
		}
	}

	// 3. Adjudication path.
	if provisional != nil {
		verdict, err := m.adjudicate(ctx, c, []task.Task{*provisional})
		if err != nil {
			// Conservative degrade: accept the similarity match but mark
			// the decision so audit can see the merge was confidence-reduced.
			log.Printf("Warning: adjudication unavailable, accepting similarity match for %s: %v", provisional.TicketID, err)
			return m.update(ctx, c, provisional, req.Scoped, task.MatchDecision{
				Action:          task.ActionUpdate,
				MatchedTicketID: provisional.TicketID,
				Similarity:      similarity,
				Confidence:      similarity,
				Reasoning:       "similarity match accepted without adjudication",
				Degraded:        true,
			})
		}
		if verdict.SameItem {
			return m.update(ctx, c, provisional, req.Scoped, task.MatchDecision{
				Action:          task.ActionUpdate,
				MatchedTicketID: provisional.TicketID,
				Similarity:      similarity,
				Confidence:      verdict.Confidence,
				Reasoning:       verdict.Reasoning,
			})
		}
		return m.create(c, task.MatchDecision{
			Confidence: verdict.Confidence,
			Reasoning:  "similarity match rejected by adjudication: " + verdict.Reasoning,
		})
	}

	// Similarity inconclusive: let the judge look at the candidate
	// against the open tasks for the same assignee.
	sameAssignee := openTasksForAssignee(req.Existing, c.Assignee)
	if len(sameAssignee) > 0 {
		verdict, err := m.adjudicate(ctx, c, sameAssignee)
		if err != nil {
			log.Printf("Warning: adjudication unavailable, defaulting to CREATE: %v", err)
		} else if verdict.SameItem {
			if existing, found := byTicket[verdict.TicketID]; found {
				return m.update(ctx, c, existing, req.Scoped, task.MatchDecision{
					Action:          task.ActionUpdate,
					MatchedTicketID: existing.TicketID,
					Confidence:      verdict.Confidence,
					Reasoning:       verdict.Reasoning,
				})
			}
		}
	}

	// 4. Default.
	return m.create(c, task.MatchDecision{
		Confidence: 1.0,
		Reasoning:  "no existing task matched",
	})
}

func (m *Matcher) update(ctx context.Context, c task.Candidate, existing *task.Task, scoped *rag.TranscriptIndex, d task.MatchDecision) task.MatchDecision {
	d.Candidate = c
	d.MergedDescription, d.MergeStrategy = m.mergeDescription(ctx, existing, c, scoped, d.Degraded)
	return d
}

func (m *Matcher) create(c task.Candidate, d task.MatchDecision) task.MatchDecision {
	if c.IsFuturePlan {
		c.Assignee = task.AssigneeTBD
	}
	d.Candidate = c
	d.Action = task.ActionCreate
	return d
}

// candidateQuery enriches the embedded query with assignee and type
// context to bias the vector toward the right neighborhood.
func candidateQuery(c task.Candidate) string {
	var b strings.Builder
	b.WriteString(c.Description)
	if c.Assignee != "" && c.Assignee != task.AssigneeTBD {
		fmt.Fprintf(&b, "\nAssignee: %s", c.Assignee)
	}
	if c.WorkType != "" {
		fmt.Fprintf(&b, "\nType: %s", c.WorkType)
	}
	if c.Status != "" {
		fmt.Fprintf(&b, "\nStatus: %s", c.Status)
	}
	return b.String()
}

func openTasksForAssignee(tasks []task.Task, assignee string) []task.Task {
	if assignee == "" || assignee == task.AssigneeTBD {
		return nil
	}
	var out []task.Task
	for _, t := range tasks {
		if t.Status != task.StatusCompleted && strings.EqualFold(t.Assignee, assignee) {
			out = append(out, t)
		}
	}
	return out
}

// verdict is the parsed adjudication reply.
type verdict struct {
	SameItem   bool    `json:"same_item"`
	TicketID   string  `json:"ticket_id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

const adjudicationSystemPrompt = `You judge whether a newly mentioned piece of work is the same real-world work item as an already tracked task. Consider what the work accomplishes, not surface wording. Answer ONLY with valid JSON:
{"same_item": true|false, "ticket_id": "<ticket id of the matching task, or empty>", "confidence": 0.0-1.0, "reasoning": "<one sentence>"}`

// adjudicate asks the completion capability whether the candidate names
// one of the given tasks.
func (m *Matcher) adjudicate(ctx context.Context, c task.Candidate, against []task.Task) (*verdict, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "New mention:\nDescription: %s\nAssignee: %s\nType: %s\n", c.Description, c.Assignee, c.WorkType)
	if c.Evidence != "" {
		fmt.Fprintf(&b, "Evidence: %s\n", c.Evidence)
	}
	b.WriteString("\nTracked tasks:\n")
	for _, t := range against {
		fmt.Fprintf(&b, "- %s [%s, %s]: %s\n", t.TicketID, t.Assignee, t.Status, t.Description)
	}
	b.WriteString("\nIs the new mention the same work item as one of the tracked tasks?")

	reply, err := m.completer.Complete(ctx, adjudicationSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}
	return parseVerdict(reply)
}

// parseVerdict extracts the JSON verdict, tolerating markdown fences.
func parseVerdict(text string) (*verdict, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var v verdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, fmt.Errorf("parse adjudication JSON: %w (raw: %s)", err, text)
	}
	return &v, nil
}
