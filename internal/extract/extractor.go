// Package extract turns a normalized transcript into typed candidate
// work items via one structured-extraction completion call.
package extract

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/azmainm/standup-tickets/internal/llm"
	"github.com/azmainm/standup-tickets/internal/task"
	"github.com/azmainm/standup-tickets/internal/transcript"
)

// retractionPhrases are the explicit cancellation signals the
// best-effort suppression filter looks for.
var retractionPhrases = []string{
	"never mind",
	"nevermind",
	"scratch that",
	"forget that",
	"forget it",
	"cancel that",
	"ignore that",
}

// retractionWindow is how many lines after a candidate's mention a
// same-speaker retraction still suppresses it.
const retractionWindow = 3

// Result is the output of one extraction pass.
type Result struct {
	Candidates []task.Candidate
	Attendees  []string
}

// Extractor issues the extraction prompt and decodes the reply.
type Extractor struct {
	completer llm.Completer
	prefix    string
}

// NewExtractor creates an extractor for tickets with the given prefix.
func NewExtractor(completer llm.Completer, prefix string) *Extractor {
	return &Extractor{completer: completer, prefix: prefix}
}

// Extract runs one extraction pass. It fails closed: a completion error
// or an unparseable reply returns zero candidates and the error.
func (e *Extractor) Extract(ctx context.Context, lines []transcript.Line, participants []string) (*Result, error) {
	system, user := BuildPrompt(lines, participants, e.prefix)

	reply, err := e.completer.Complete(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("extraction completion failed: %w", err)
	}

	candidates, attendees, err := ParseReply(reply)
	if err != nil {
		return nil, fmt.Errorf("extraction reply: %w", err)
	}

	for i := range candidates {
		c := &candidates[i]
		if c.IsFuturePlan {
			c.Assignee = task.AssigneeTBD
		} else {
			c.Assignee = ResolveAssignee(c.Assignee, participants)
		}
		if c.TicketIDHint != task.NoTicketHint {
			if id, ok := task.NormalizeTicketID(c.TicketIDHint, e.prefix); ok {
				c.TicketIDHint = id
			} else {
				c.TicketIDHint = task.NoTicketHint
			}
		}
	}

	candidates = suppressRetracted(candidates, lines)

	if len(attendees) == 0 {
		attendees = participants
	}

	return &Result{Candidates: candidates, Attendees: attendees}, nil
}

// suppressRetracted drops candidates whose mention is followed, within
// a few lines and by the same speaker, by an explicit retraction
// phrase. Best-effort: a candidate whose mention cannot be located in
// the transcript is kept.
func suppressRetracted(candidates []task.Candidate, lines []transcript.Line) []task.Candidate {
	retractions := retractionLines(lines)
	if len(retractions) == 0 {
		return candidates
	}

	kept := candidates[:0]
	for _, c := range candidates {
		mention := mentionLine(c, lines)
		if mention < 0 {
			kept = append(kept, c)
			continue
		}
		suppressed := false
		for _, r := range retractions {
			if r > mention && r-mention <= retractionWindow &&
				strings.EqualFold(lines[r].Speaker, lines[mention].Speaker) {
				log.Printf("Warning: suppressing retracted candidate %q (line %d retracts line %d)", c.Description, r, mention)
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

func retractionLines(lines []transcript.Line) []int {
	var idxs []int
	for i, l := range lines {
		lower := strings.ToLower(l.Text)
		for _, phrase := range retractionPhrases {
			if strings.Contains(lower, phrase) {
				idxs = append(idxs, i)
				break
			}
		}
	}
	return idxs
}

// mentionLine finds the last line sharing enough significant words with
// the candidate's evidence (or description when evidence is empty).
func mentionLine(c task.Candidate, lines []transcript.Line) int {
	source := c.Evidence
	if source == "" {
		source = c.Description
	}
	words := significantWords(source)
	if len(words) == 0 {
		return -1
	}

	best, bestOverlap := -1, 0
	for i, l := range lines {
		lower := strings.ToLower(l.Text)
		overlap := 0
		for w := range words {
			if strings.Contains(lower, w) {
				overlap++
			}
		}
		if overlap*2 >= len(words) && overlap >= bestOverlap {
			best, bestOverlap = i, overlap
		}
	}
	return best
}

func significantWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?\"'")
		if len(w) >= 4 {
			words[w] = true
		}
	}
	return words
}
