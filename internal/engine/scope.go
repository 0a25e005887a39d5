package engine

import (
	"github.com/azmainm/standup-tickets/internal/rag"
	"github.com/azmainm/standup-tickets/internal/transcript"
)

// Scope carries the per-invocation state through the call chain: the
// transcript identity and the transcript-scoped chunk index. It is
// created at the start of a run and dropped at the end, so nothing
// leaks across concurrent invocations of a long-lived process.
type Scope struct {
	TranscriptID string
	Lines        []transcript.Line
	ContentHash  string
	ChunkIndex   *rag.TranscriptIndex
}

func newScope(transcriptID string, lines []transcript.Line) *Scope {
	return &Scope{
		TranscriptID: transcriptID,
		Lines:        lines,
		ContentHash:  transcript.ContentHash(lines),
	}
}
