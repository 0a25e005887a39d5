package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/azmainm/standup-tickets/internal/task"
)

// ErrUnparseable is returned when the completion reply matches none of
// the expected output shapes. The extractor fails closed on it.
var ErrUnparseable = fmt.Errorf("completion reply does not match extraction format")

// ParseReply decodes the labeled-field reply of the extraction prompt.
// Malformed blocks are dropped; numeric fields default to zero. This is
// the single place that touches the free-text wire format.
func ParseReply(text string) (candidates []task.Candidate, attendees []string, err error) {
	cleaned := stripFences(text)

	noTasks := false
	var blocks []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(cleaned, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.EqualFold(trimmed, "TASK:"):
			flush()
			current = []string{}
		case strings.HasPrefix(strings.ToUpper(trimmed), "TASKS:"):
			if strings.EqualFold(strings.TrimSpace(trimmed[len("TASKS:"):]), "NONE") {
				noTasks = true
			}
		case strings.HasPrefix(strings.ToUpper(trimmed), "ATTENDEES:"):
			flush()
			attendees = splitNames(trimmed[len("ATTENDEES:"):])
		case current != nil:
			current = append(current, trimmed)
		}
	}
	flush()

	for _, block := range blocks {
		if c, ok := parseBlock(block); ok {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 && !noTasks && len(blocks) == 0 && len(attendees) == 0 {
		return nil, nil, ErrUnparseable
	}
	return candidates, attendees, nil
}

// parseBlock decodes one candidate block. Blocks missing a description
// or a recognizable category are rejected, not defaulted.
func parseBlock(block string) (task.Candidate, bool) {
	fields := make(map[string]string)
	for _, line := range strings.Split(block, "\n") {
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(line[:idx]))
		fields[key] = strings.TrimSpace(line[idx+1:])
	}

	c := task.Candidate{
		Description: fields["DESCRIPTION"],
		Assignee:    fields["ASSIGNEE"],
		Evidence:    fields["EVIDENCE"],
		Context:     fields["CONTEXT"],
	}
	if c.Description == "" {
		return task.Candidate{}, false
	}

	switch strings.ToUpper(fields["CATEGORY"]) {
	case task.CategoryNewTask:
		c.Category = task.CategoryNewTask
	case task.CategoryUpdateTask:
		c.Category = task.CategoryUpdateTask
	default:
		return task.Candidate{}, false
	}

	switch strings.ToLower(fields["TYPE"]) {
	case "coding":
		c.WorkType = task.WorkCoding
	case "non-coding", "noncoding":
		c.WorkType = task.WorkNonCoding
	case "bug":
		c.WorkType = task.WorkBug
	default:
		c.WorkType = task.WorkNonCoding
	}

	hint := fields["TICKET_ID"]
	if hint == "" || strings.EqualFold(hint, task.NoTicketHint) {
		c.TicketIDHint = task.NoTicketHint
	} else {
		c.TicketIDHint = hint
	}

	switch strings.ToLower(fields["STATUS"]) {
	case "to-do", "todo":
		c.Status = task.StatusTodo
	case "in-progress", "in progress":
		c.Status = task.StatusInProgress
	case "completed", "done":
		c.Status = task.StatusCompleted
	}

	c.EstimatedTime = parseHours(fields["ESTIMATED_TIME"])
	c.TimeSpent = parseHours(fields["TIME_SPENT"])

	if p := canonicalPriority(fields["PRIORITY"]); p != "" {
		c.Priority = p
	}

	if n, err := strconv.Atoi(strings.TrimSpace(fields["STORY_POINTS"])); err == nil && n > 0 {
		c.StoryPoints = n
	}

	c.IsFuturePlan = strings.EqualFold(strings.TrimSpace(fields["FUTURE_PLAN"]), "true")
	if c.IsFuturePlan {
		c.Assignee = task.AssigneeTBD
	}

	return c, true
}

// parseHours reads a non-negative hour figure, tolerating trailing
// units like "2 hours" or "1.5h".
func parseHours(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if idx := strings.IndexFunc(raw, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	}); idx > 0 {
		raw = raw[:idx]
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func canonicalPriority(raw string) string {
	for _, p := range []string{
		task.PriorityHighest, task.PriorityHigh, task.PriorityMedium,
		task.PriorityLow, task.PriorityLowest,
	} {
		if strings.EqualFold(strings.TrimSpace(raw), p) {
			return p
		}
	}
	return ""
}

func splitNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(text string) string {
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
	return cleaned
}
