// Package rag retrieves relevant transcript passages to ground merged
// task descriptions in verbatim evidence.
package rag

import "strings"

const (
	// DefaultChunkSize is the chunk window in words.
	DefaultChunkSize = 80
	// DefaultChunkOverlap is how many words consecutive chunks share.
	DefaultChunkOverlap = 20
)

// SplitOverlapping splits text into overlapping word-window chunks.
// The final chunk may be shorter; a text smaller than one window is a
// single chunk.
func SplitOverlapping(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 4
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= size {
		return []string{strings.Join(words, " ")}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
