package extract

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/azmainm/standup-tickets/internal/task"
)

// ResolveAssignee matches a raw assignee token against the known
// participants. Exact (case-insensitive) matches win; otherwise a fuzzy
// match is accepted only when its score clears the threshold relative
// to the best runner-up. Unresolved tokens are kept, normalized.
func ResolveAssignee(raw string, participants []string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, task.AssigneeTBD) {
		return task.AssigneeTBD
	}

	for _, p := range participants {
		if strings.EqualFold(raw, p) {
			return p
		}
	}

	// First-name matches are common in transcripts ("Dave" for "Dave Chen").
	for _, p := range participants {
		first := strings.Fields(p)
		if len(first) > 0 && strings.EqualFold(raw, first[0]) {
			return p
		}
	}

	matches := fuzzy.Find(strings.ToLower(raw), lowered(participants))
	if len(matches) > 0 && acceptMatch(matches, raw) {
		return participants[matches[0].Index]
	}

	return normalizeName(raw)
}

// acceptMatch requires a positive score and a clear margin over the
// runner-up so "Jon" does not silently become "Jonathan" when a "Jona"
// is also in the room.
func acceptMatch(matches fuzzy.Matches, raw string) bool {
	if len(raw) < 3 || matches[0].Score <= 0 {
		return false
	}
	if len(matches) > 1 && matches[0].Score-matches[1].Score < len(raw) {
		return false
	}
	return true
}

func lowered(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(n)
	}
	return out
}

// normalizeName title-cases an unresolved raw token.
func normalizeName(raw string) string {
	words := strings.Fields(raw)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}
