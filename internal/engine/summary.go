package engine

import "github.com/azmainm/standup-tickets/internal/task"

// MutationFailure records one store mutation that could not be applied.
// The batch is not transactional: other mutations are unaffected.
type MutationFailure struct {
	TicketID string `json:"ticket_id,omitempty"`
	Action   string `json:"action"`
	Error    string `json:"error"`
}

// Summary is what a run reports back to the transport layer: what was
// found, what changed, and which stages degraded. A partial success is
// never silent.
type Summary struct {
	TranscriptID   string                   `json:"transcript_id"`
	Skipped        bool                     `json:"skipped,omitempty"`
	SkipReason     string                   `json:"skip_reason,omitempty"`
	Participants   []string                 `json:"participants"`
	Attendees      []string                 `json:"attendees,omitempty"`
	Created        []string                 `json:"created"`
	Updated        []string                 `json:"updated"`
	StatusChanges  []task.StatusChangeEvent `json:"status_changes"`
	Decisions      []task.MatchDecision     `json:"decisions,omitempty"`
	DegradedStages []string                 `json:"degraded_stages,omitempty"`
	Failures       []MutationFailure        `json:"failures,omitempty"`
}

func (s *Summary) degrade(stage string) {
	for _, d := range s.DegradedStages {
		if d == stage {
			return
		}
	}
	s.DegradedStages = append(s.DegradedStages, stage)
}

func (s *Summary) fail(ticketID, action string, err error) {
	s.Failures = append(s.Failures, MutationFailure{
		TicketID: ticketID,
		Action:   action,
		Error:    err.Error(),
	})
}
