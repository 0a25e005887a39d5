// Package transcript turns raw meeting transcript records into normalized
// speaker-attributed lines the rest of the pipeline consumes.
package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// RawRecord is a transcript entry as delivered by the transcript source.
// Text may contain markup (HTML tags, VTT voice spans).
type RawRecord struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Line is a normalized (speaker, text) pair.
type Line struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize strips markup and collapses whitespace, dropping records
// whose text is empty after cleaning.
func Normalize(records []RawRecord) []Line {
	var lines []Line
	for _, r := range records {
		text := cleanText(r.Text)
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Speaker: strings.TrimSpace(r.Speaker),
			Text:    text,
		})
	}
	return lines
}

func cleanText(text string) string {
	text = tagPattern.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Participants returns the unique speaker names in first-seen order.
func Participants(lines []Line) []string {
	seen := make(map[string]bool)
	var names []string
	for _, l := range lines {
		if l.Speaker == "" || seen[l.Speaker] {
			continue
		}
		seen[l.Speaker] = true
		names = append(names, l.Speaker)
	}
	return names
}

// ContentHash returns a stable hash of the normalized transcript content,
// used to detect re-processing of the same transcript.
func ContentHash(lines []Line) string {
	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l.Speaker))
		h.Write([]byte{0})
		h.Write([]byte(l.Text))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Join renders lines as "Speaker: text" rows for prompt construction.
func Join(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		if l.Speaker != "" {
			b.WriteString(l.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(l.Text)
		b.WriteString("\n")
	}
	return b.String()
}
