package rag

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/azmainm/standup-tickets/internal/store"
	"github.com/azmainm/standup-tickets/internal/transcript"
)

type fakeEmbedder struct {
	axes map[string][]float32
	err  error
}

func (f *fakeEmbedder) embed(text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, 3)
	for keyword, axis := range f.axes {
		if strings.Contains(strings.ToLower(text), keyword) {
			for i := range vec {
				vec[i] += axis[i]
			}
		}
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	return f.embed(text)
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return f.embed(text)
}

func newRetrieverEmbedder() *fakeEmbedder {
	return &fakeEmbedder{axes: map[string][]float32{
		"login":   {1, 0, 0},
		"billing": {0, 1, 0},
	}}
}

func newTestRetriever(t *testing.T, embedder *fakeEmbedder) *Retriever {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "tickets.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	// Tiny windows so a short test transcript produces several chunks.
	return NewRetriever(s.DB(), embedder, 8, 2)
}

func meetingLines() []transcript.Line {
	return []transcript.Line{
		{Speaker: "Alice", Text: "The login redirect loop still bites people on the staging login page every day"},
		{Speaker: "Bob", Text: "Separately the billing export job needs to move to the new billing database schema"},
	}
}

func TestRetrieveContext(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a scoped index When retrieving Then only relevant passages return with provenance", func(t *testing.T) {
		r := newTestRetriever(t, newRetrieverEmbedder())
		ti, err := r.IndexTranscript(ctx, "standup-1", meetingLines(), false)
		if err != nil {
			t.Fatalf("IndexTranscript failed: %v", err)
		}
		if ti.Len() < 2 {
			t.Fatalf("expected several chunks, got %d", ti.Len())
		}

		got, err := r.RetrieveContext(ctx, "login keeps breaking", Options{Scoped: ti, TopK: 2, ScoreThreshold: 0.5})
		if err != nil {
			t.Fatalf("RetrieveContext failed: %v", err)
		}
		if !strings.Contains(got.Text, "login") {
			t.Errorf("expected login passages, got %q", got.Text)
		}
		if len(got.Sources) == 0 {
			t.Fatal("expected source provenance")
		}
		for _, src := range got.Sources {
			if src.TranscriptID != "standup-1" || src.ChunkID == "" {
				t.Errorf("bad source: %+v", src)
			}
			if src.Similarity < 0.5 {
				t.Errorf("below-threshold source returned: %+v", src)
			}
		}
	})

	t.Run("Given persisted chunks When retrieving globally Then the durable store answers", func(t *testing.T) {
		r := newTestRetriever(t, newRetrieverEmbedder())
		if _, err := r.IndexTranscript(ctx, "standup-1", meetingLines(), true); err != nil {
			t.Fatalf("IndexTranscript failed: %v", err)
		}

		got, err := r.RetrieveContext(ctx, "billing schema work", Options{TopK: 2, ScoreThreshold: 0.5})
		if err != nil {
			t.Fatalf("global RetrieveContext failed: %v", err)
		}
		if !strings.Contains(got.Text, "billing") {
			t.Errorf("expected billing passages from the durable store, got %q", got.Text)
		}
	})

	t.Run("Given unpersisted chunks When retrieving globally Then nothing is found", func(t *testing.T) {
		r := newTestRetriever(t, newRetrieverEmbedder())
		if _, err := r.IndexTranscript(ctx, "standup-1", meetingLines(), false); err != nil {
			t.Fatalf("IndexTranscript failed: %v", err)
		}

		got, err := r.RetrieveContext(ctx, "billing schema work", Options{TopK: 2, ScoreThreshold: 0.5})
		if err != nil {
			t.Fatalf("global RetrieveContext failed: %v", err)
		}
		if got.Text != "" || len(got.Sources) != 0 {
			t.Errorf("ephemeral chunks must not leak into the durable store, got %+v", got)
		}
	})

	t.Run("Given a failing embedder When retrieving Then an empty context without error", func(t *testing.T) {
		embedder := newRetrieverEmbedder()
		r := newTestRetriever(t, embedder)
		ti, err := r.IndexTranscript(ctx, "standup-1", meetingLines(), false)
		if err != nil {
			t.Fatalf("IndexTranscript failed: %v", err)
		}

		embedder.err = errors.New("ollama unreachable")
		got, err := r.RetrieveContext(ctx, "login keeps breaking", Options{Scoped: ti, TopK: 2})
		if err != nil {
			t.Errorf("degraded retrieval must not error, got %v", err)
		}
		if got == nil || got.Text != "" || len(got.Sources) != 0 {
			t.Errorf("expected an empty context, got %+v", got)
		}
	})

	t.Run("Given embed failures during indexing When indexing Then usable chunks survive", func(t *testing.T) {
		embedder := newRetrieverEmbedder()
		embedder.err = errors.New("ollama unreachable")
		r := newTestRetriever(t, embedder)

		ti, err := r.IndexTranscript(ctx, "standup-1", meetingLines(), false)
		if err != nil {
			t.Errorf("per-chunk failures must not abort indexing: %v", err)
		}
		if ti.Len() != 0 {
			t.Errorf("expected no embedded chunks, got %d", ti.Len())
		}
	})
}
