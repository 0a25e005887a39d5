// Package status implements a rule-based detector for explicit
// "ticket X is done / started" phrasing in transcript lines. It is
// independent of the LLM extraction stage and never calls out.
package status

import (
	"fmt"
	"regexp"

	"github.com/azmainm/standup-tickets/internal/task"
	"github.com/azmainm/standup-tickets/internal/transcript"
)

type pattern struct {
	re         *regexp.Regexp
	confidence float64
}

// Detector scans normalized lines for explicit status-change phrasing.
type Detector struct {
	prefix     string
	completion []pattern
	inProgress []pattern
}

// NewDetector builds a detector for ticket ids with the given prefix.
func NewDetector(prefix string) *Detector {
	// Ticket token tolerates spacing and case: "SP-30", "sp 30", "Sp30".
	id := fmt.Sprintf(`(?i)((?:%s)[\s-]*\d+)`, regexp.QuoteMeta(prefix))

	completion := []pattern{
		{regexp.MustCompile(id + `\s+(?:is|was|got)\s+(?:done|complete|completed|finished|closed)`), 0.95},
		{regexp.MustCompile(`(?i)(?:finished|completed|closed|wrapped\s+up|done\s+with)\s+` + id), 0.9},
		{regexp.MustCompile(id + `\s+(?:can\s+be\s+)?(?:marked|moved\s+to)\s+(?:as\s+)?(?:done|complete|completed)`), 0.85},
	}
	inProgress := []pattern{
		{regexp.MustCompile(id + `\s+is\s+(?:in\s+progress|underway|ongoing)`), 0.9},
		{regexp.MustCompile(`(?i)(?:started|picked\s+up|began|working\s+on)\s+` + id), 0.85},
		{regexp.MustCompile(id + `\s+(?:has\s+)?(?:been\s+)?started`), 0.8},
	}

	return &Detector{prefix: prefix, completion: completion, inProgress: inProgress}
}

// Detect returns at most one event per ticket. Completion beats
// in-progress for the same ticket; within a family the
// highest-confidence match wins.
func (d *Detector) Detect(lines []transcript.Line) []task.StatusChangeEvent {
	best := make(map[string]task.StatusChangeEvent)
	var order []string

	record := func(ev task.StatusChangeEvent) {
		prev, ok := best[ev.TicketID]
		if !ok {
			best[ev.TicketID] = ev
			order = append(order, ev.TicketID)
			return
		}
		if prev.NewStatus == task.StatusCompleted && ev.NewStatus != task.StatusCompleted {
			return
		}
		if ev.NewStatus == task.StatusCompleted && prev.NewStatus != task.StatusCompleted {
			best[ev.TicketID] = ev
			return
		}
		if ev.Confidence > prev.Confidence {
			best[ev.TicketID] = ev
		}
	}

	for _, line := range lines {
		for _, p := range d.completion {
			for _, m := range p.re.FindAllStringSubmatch(line.Text, -1) {
				if id, ok := task.NormalizeTicketID(m[1], d.prefix); ok {
					record(task.StatusChangeEvent{
						TicketID:   id,
						NewStatus:  task.StatusCompleted,
						Confidence: p.confidence,
						Evidence:   line.Text,
						Speaker:    line.Speaker,
					})
				}
			}
		}
		for _, p := range d.inProgress {
			for _, m := range p.re.FindAllStringSubmatch(line.Text, -1) {
				if id, ok := task.NormalizeTicketID(m[1], d.prefix); ok {
					record(task.StatusChangeEvent{
						TicketID:   id,
						NewStatus:  task.StatusInProgress,
						Confidence: p.confidence,
						Evidence:   line.Text,
						Speaker:    line.Speaker,
					})
				}
			}
		}
	}

	events := make([]task.StatusChangeEvent, 0, len(order))
	for _, id := range order {
		events = append(events, best[id])
	}
	return events
}
