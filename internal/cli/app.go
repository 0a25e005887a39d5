package cli

import (
	"fmt"
	"os"

	"github.com/azmainm/standup-tickets/internal/alloc"
	"github.com/azmainm/standup-tickets/internal/config"
	"github.com/azmainm/standup-tickets/internal/embedding"
	"github.com/azmainm/standup-tickets/internal/engine"
	"github.com/azmainm/standup-tickets/internal/extract"
	"github.com/azmainm/standup-tickets/internal/llm"
	"github.com/azmainm/standup-tickets/internal/rag"
	"github.com/azmainm/standup-tickets/internal/reconcile"
	"github.com/azmainm/standup-tickets/internal/simindex"
	"github.com/azmainm/standup-tickets/internal/status"
	"github.com/azmainm/standup-tickets/internal/store"
)

// app bundles the wired-up collaborators a command needs.
type app struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
	index  *simindex.Index
}

// buildApp wires the engine from configuration. The caller closes the
// returned app when done.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	embedder := embedding.NewLocalClient(
		embedding.WithEndpoint(cfg.Embedding.BaseURL),
		embedding.WithModel(cfg.Embedding.Model),
	)

	index, err := simindex.New(st.DB(), embedder)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open similarity index: %w", err)
	}

	completer := llm.NewAnthropicClient(
		os.Getenv(cfg.LLM.APIKeyEnv),
		llm.WithModel(cfg.LLM.Model),
	)

	retriever := rag.NewRetriever(st.DB(), embedder, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	matcher := reconcile.NewMatcher(index, completer, retriever, st, cfg.Ticket.Prefix, cfg.Matching.SimilarityThreshold)

	eng := engine.New(engine.Deps{
		Store:         st,
		Extractor:     extract.NewExtractor(completer, cfg.Ticket.Prefix),
		Detector:      status.NewDetector(cfg.Ticket.Prefix),
		Matcher:       matcher,
		Index:         index,
		Chunks:        retriever,
		Allocator:     alloc.NewAllocator(st, st, cfg.Ticket.Prefix),
		PersistChunks: cfg.RAG.PersistChunks,
	})

	return &app{cfg: cfg, store: st, engine: eng, index: index}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
