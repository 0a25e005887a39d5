package engine

import "errors"

// Non-recoverable input problems fail the whole run; local degradations
// (embedding or adjudication unavailable) are absorbed with a fallback
// and reported on the run summary instead.
var (
	// ErrEmptyTranscript means the transcript had no usable lines.
	ErrEmptyTranscript = errors.New("transcript is empty after normalization")

	// ErrExtractionFailed means the completion call errored or its
	// reply was unparseable. Nothing is partially applied.
	ErrExtractionFailed = errors.New("candidate extraction failed")
)
