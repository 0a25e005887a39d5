package config

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Ticket: TicketConfig{
			Prefix: "SP",
		},
		LLM: LLMConfig{
			Model:     "claude-sonnet-4-20250514",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		Embedding: EmbeddingConfig{
			BaseURL: "http://localhost:11434/api/embed",
			Model:   "nomic-embed-text",
		},
		Store: StoreConfig{
			Path: "~/.standup-tickets/tickets.db",
		},
		Matching: MatchingConfig{
			SimilarityThreshold: 0.7,
		},
		RAG: RAGConfig{
			ChunkSize:     80,
			ChunkOverlap:  20,
			PersistChunks: true,
		},
		Server: ServerConfig{
			Addr: ":8391",
		},
	}
}
