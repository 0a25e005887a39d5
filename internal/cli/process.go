package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/azmainm/standup-tickets/internal/engine"
	"github.com/azmainm/standup-tickets/internal/transcript"
)

var processTranscriptID string

func init() {
	processCmd.Flags().StringVar(&processTranscriptID, "id", "", "Transcript identifier (defaults to the file name)")
}

var processCmd = &cobra.Command{
	Use:   "process <transcript-file>",
	Short: "Process a transcript file into ticket mutations",
	Long: `Process reads a transcript file with one "Speaker: text" utterance per
line, extracts candidate work items, reconciles them against the ticket
store, and applies the resulting creates, updates, and status changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := readTranscriptFile(args[0])
		if err != nil {
			return err
		}

		id := processTranscriptID
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.engine.ProcessTranscript(context.Background(), id, records)
		if err != nil {
			return err
		}

		printSummary(summary)
		return nil
	},
}

// readTranscriptFile parses "Speaker: text" lines. Lines without a
// speaker prefix continue the previous speaker's utterance.
func readTranscriptFile(path string) ([]transcript.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var records []transcript.RawRecord
	lastSpeaker := ""

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		speaker, text := splitSpeaker(line)
		if speaker == "" {
			speaker = lastSpeaker
		} else {
			lastSpeaker = speaker
		}
		records = append(records, transcript.RawRecord{Speaker: speaker, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return records, nil
}

// splitSpeaker splits "Alice: did the thing" into speaker and text. A
// colon too far into the line is treated as sentence punctuation.
func splitSpeaker(line string) (speaker, text string) {
	idx := strings.Index(line, ":")
	if idx <= 0 || idx > 40 {
		return "", line
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:])
}

func printSummary(s *engine.Summary) {
	if s.Skipped {
		fmt.Printf("Transcript %s skipped: %s\n", s.TranscriptID, s.SkipReason)
		return
	}

	fmt.Printf("Transcript %s processed.\n", s.TranscriptID)
	fmt.Printf("  Participants: %s\n", strings.Join(s.Participants, ", "))
	fmt.Printf("  Created: %d %v\n", len(s.Created), s.Created)
	fmt.Printf("  Updated: %d %v\n", len(s.Updated), s.Updated)
	fmt.Printf("  Status changes: %d\n", len(s.StatusChanges))
	for _, ev := range s.StatusChanges {
		fmt.Printf("    %s -> %s (%.2f)\n", ev.TicketID, ev.NewStatus, ev.Confidence)
	}
	if len(s.DegradedStages) > 0 {
		fmt.Printf("  Degraded stages: %s\n", strings.Join(s.DegradedStages, ", "))
	}
	for _, f := range s.Failures {
		fmt.Printf("  FAILED %s %s: %s\n", f.Action, f.TicketID, f.Error)
	}
}
