package reconcile

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/azmainm/standup-tickets/internal/rag"
	"github.com/azmainm/standup-tickets/internal/task"
)

// mergeDescription blends the candidate's new information into the
// existing description. The existing text is always kept verbatim as a
// prefix; descriptions are monotonically enriched, never shrunk.
//
// Fallback chain, tagged on the decision for audit:
// RAG-enhanced (grounded in retrieved transcript passages) -> basic
// (description + evidence appended) -> raw append (verbatim evidence
// only, used when adjudication already degraded the decision).
func (m *Matcher) mergeDescription(ctx context.Context, existing *task.Task, c task.Candidate, scoped *rag.TranscriptIndex, degraded bool) (string, string) {
	if degraded {
		return rawAppend(existing.Description, c), task.MergeRawAppend
	}

	if m.retriever != nil {
		retrieved, err := m.retriever.RetrieveContext(ctx, c.Description, rag.Options{
			Scoped: scoped,
			TopK:   3,
		})
		if err != nil {
			log.Printf("Warning: merge retrieval failed, using basic merge: %v", err)
		} else if retrieved.Text != "" {
			return ragMerge(existing.Description, c, retrieved.Text), task.MergeRAG
		}
	}

	return basicMerge(existing.Description, c), task.MergeBasic
}

func ragMerge(existing string, c task.Candidate, passages string) string {
	var b strings.Builder
	b.WriteString(existing)
	fmt.Fprintf(&b, "\n\nUpdate: %s", c.Description)
	if c.Evidence != "" {
		fmt.Fprintf(&b, "\nEvidence: %s", c.Evidence)
	}
	fmt.Fprintf(&b, "\nMeeting context:\n%s", passages)
	return b.String()
}

func basicMerge(existing string, c task.Candidate) string {
	var b strings.Builder
	b.WriteString(existing)
	fmt.Fprintf(&b, "\n\nUpdate: %s", c.Description)
	if c.Evidence != "" {
		fmt.Fprintf(&b, "\nEvidence: %s", c.Evidence)
	}
	if c.Context != "" {
		fmt.Fprintf(&b, "\nContext: %s", c.Context)
	}
	return b.String()
}

func rawAppend(existing string, c task.Candidate) string {
	addition := c.Evidence
	if addition == "" {
		addition = c.Description
	}
	return existing + "\n\n" + addition
}

// ApplyUpdate returns a copy of the existing task with the decision's
// merge applied. Numeric fields union conservatively: time spent
// accumulates, the estimate is replaced only by a fresher non-zero
// figure, and priority/story points are only ever set, never cleared.
func ApplyUpdate(existing task.Task, d task.MatchDecision) task.Task {
	updated := existing
	c := d.Candidate

	if d.MergedDescription != "" {
		updated.Description = d.MergedDescription
	}
	if c.TimeSpent > 0 {
		updated.TimeSpent = existing.TimeSpent + c.TimeSpent
	}
	if c.EstimatedTime > 0 {
		updated.EstimatedTime = c.EstimatedTime
	}
	if c.Priority != "" && task.ValidPriority(c.Priority) {
		updated.Priority = c.Priority
	}
	if c.StoryPoints > 0 {
		updated.StoryPoints = c.StoryPoints
	}
	return updated
}

// NewTaskFromDecision builds the task a CREATE decision persists. The
// ticket id is assigned later by the allocator.
func NewTaskFromDecision(d task.MatchDecision) task.Task {
	c := d.Candidate
	assignee := c.Assignee
	if c.IsFuturePlan || assignee == "" {
		assignee = task.AssigneeTBD
	}
	status := c.Status
	if status == "" {
		status = task.StatusTodo
	}
	return task.Task{
		Title:         deriveTitle(c.Description),
		Description:   c.Description,
		Assignee:      assignee,
		WorkType:      c.WorkType,
		Status:        status,
		EstimatedTime: c.EstimatedTime,
		TimeSpent:     c.TimeSpent,
		Priority:      c.Priority,
		StoryPoints:   c.StoryPoints,
		IsFuturePlan:  c.IsFuturePlan,
	}
}

// deriveTitle takes the first few words of the description.
func deriveTitle(description string) string {
	words := strings.Fields(description)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.TrimRight(strings.Join(words, " "), ".,;:")
}

// GroupCreates buckets CREATE decisions by assignee and work type for
// persistence. Future-plan candidates land in the TBD bucket regardless
// of any inferred assignee.
func GroupCreates(decisions []task.MatchDecision) map[string][]task.MatchDecision {
	groups := make(map[string][]task.MatchDecision)
	for _, d := range decisions {
		if d.Action != task.ActionCreate {
			continue
		}
		assignee := d.Candidate.Assignee
		if d.Candidate.IsFuturePlan || assignee == "" {
			assignee = task.AssigneeTBD
		}
		key := assignee + "|" + d.Candidate.WorkType
		groups[key] = append(groups[key], d)
	}
	return groups
}

// SortedGroupKeys returns group keys in a stable order.
func SortedGroupKeys(groups map[string][]task.MatchDecision) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
