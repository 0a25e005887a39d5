package task

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Status values for a tracked task. The machine is forward-biased:
// an explicit Completed signal beats a concurrent In-progress signal
// for the same ticket within one run.
const (
	StatusTodo       = "To-do"
	StatusInProgress = "In-progress"
	StatusCompleted  = "Completed"
)

// Work type constants
const (
	WorkCoding    = "Coding"
	WorkNonCoding = "Non-Coding"
	WorkBug       = "Bug"
)

// Priority values, ordered Highest to Lowest.
const (
	PriorityHighest = "Highest"
	PriorityHigh    = "High"
	PriorityMedium  = "Medium"
	PriorityLow     = "Low"
	PriorityLowest  = "Lowest"
)

// AssigneeTBD is the sentinel assignee for unowned work.
// Future-plan tasks always carry it.
const AssigneeTBD = "TBD"

// Candidate category constants
const (
	CategoryNewTask    = "NEW_TASK"
	CategoryUpdateTask = "UPDATE_TASK"
)

// NoTicketHint marks a candidate with no spoken ticket identifier.
const NoTicketHint = "NONE"

// Reconciler actions
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
)

// Merge provenance tags, recorded on every UPDATE decision so an audit
// can tell which fallback produced the merged description.
const (
	MergeRAG       = "rag-enhanced"
	MergeBasic     = "basic"
	MergeRawAppend = "raw-append"
)

// Task is the unit of tracked work.
type Task struct {
	TicketID      string    `json:"ticket_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Assignee      string    `json:"assignee"`
	WorkType      string    `json:"work_type"`
	Status        string    `json:"status"`
	EstimatedTime float64   `json:"estimated_time"`
	TimeSpent     float64   `json:"time_spent"`
	Priority      string    `json:"priority,omitempty"`
	StoryPoints   int       `json:"story_points,omitempty"`
	IsFuturePlan  bool      `json:"is_future_plan"`
	CreatedAt     time.Time `json:"created_at"`
	LastModified  time.Time `json:"last_modified"`
}

// EmbeddingText returns the text the similarity index embeds for this task.
func (t *Task) EmbeddingText() string {
	var b strings.Builder
	if t.Title != "" {
		b.WriteString(t.Title)
		b.WriteString("\n")
	}
	b.WriteString(t.Description)
	if t.Assignee != "" && t.Assignee != AssigneeTBD {
		fmt.Fprintf(&b, "\nAssignee: %s", t.Assignee)
	}
	if t.WorkType != "" {
		fmt.Fprintf(&b, "\nType: %s", t.WorkType)
	}
	return b.String()
}

// Candidate is an extracted, not-yet-persisted mention of a work item.
type Candidate struct {
	Description   string  `json:"description"`
	Assignee      string  `json:"assignee"`
	WorkType      string  `json:"work_type"`
	Category      string  `json:"category"`
	TicketIDHint  string  `json:"ticket_id_hint"`
	Status        string  `json:"status,omitempty"`
	Evidence      string  `json:"evidence,omitempty"`
	Context       string  `json:"context,omitempty"`
	EstimatedTime float64 `json:"estimated_time"`
	TimeSpent     float64 `json:"time_spent"`
	Priority      string  `json:"priority,omitempty"`
	StoryPoints   int     `json:"story_points,omitempty"`
	IsFuturePlan  bool    `json:"is_future_plan"`
	Speaker       string  `json:"speaker,omitempty"`
}

// StatusChangeEvent is an explicit status signal detected in a transcript.
type StatusChangeEvent struct {
	TicketID   string  `json:"ticket_id"`
	NewStatus  string  `json:"new_status"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
	Speaker    string  `json:"speaker,omitempty"`
}

// MatchDecision is the Reconciler's output for one candidate.
type MatchDecision struct {
	Candidate         Candidate `json:"candidate"`
	Action            string    `json:"action"`
	MatchedTicketID   string    `json:"matched_ticket_id,omitempty"`
	Similarity        float64   `json:"similarity,omitempty"`
	Confidence        float64   `json:"confidence"`
	Reasoning         string    `json:"reasoning,omitempty"`
	MergedDescription string    `json:"merged_description,omitempty"`
	MergeStrategy     string    `json:"merge_strategy,omitempty"`
	Degraded          bool      `json:"degraded,omitempty"`
}

// StatusRank orders the status machine To-do (0) to Completed (2).
// Unknown statuses rank below To-do.
func StatusRank(s string) int {
	switch s {
	case StatusTodo:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// PriorityRank orders priorities Highest (4) to Lowest (0).
// Unknown priorities rank below Lowest.
func PriorityRank(p string) int {
	switch p {
	case PriorityHighest:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	case PriorityLowest:
		return 0
	}
	return -1
}

// ValidPriority reports whether p is one of the known priority values.
func ValidPriority(p string) bool {
	return PriorityRank(p) >= 0
}

// ticketIDPattern tolerates spacing and case: "sp-25", "SP 25", "Sp25".
var ticketIDPattern = regexp.MustCompile(`(?i)^\s*([A-Za-z]+)\s*-?\s*(\d+)\s*$`)

// NormalizeTicketID canonicalizes a spoken ticket reference to PREFIX-<n>.
// Returns false if raw does not look like a ticket id for the given prefix.
func NormalizeTicketID(raw, prefix string) (string, bool) {
	m := ticketIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	if !strings.EqualFold(m[1], prefix) {
		return "", false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", false
	}
	return FormatTicketID(prefix, n), true
}

// FormatTicketID formats a ticket identifier as PREFIX-<n>.
func FormatTicketID(prefix string, n int) string {
	return fmt.Sprintf("%s-%d", strings.ToUpper(prefix), n)
}

// TicketNumber extracts the numeric part of a canonical ticket id.
func TicketNumber(ticketID string) (int, bool) {
	idx := strings.LastIndex(ticketID, "-")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(ticketID[idx+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
