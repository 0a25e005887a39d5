package config

// Config is the full standup-tickets configuration.
type Config struct {
	Version string `yaml:"version" mapstructure:"version"`

	// Ticket identifier settings
	Ticket TicketConfig `yaml:"ticket" mapstructure:"ticket"`

	// Completion capability (Anthropic Messages API)
	LLM LLMConfig `yaml:"llm" mapstructure:"llm"`

	// Embedding capability (Ollama-compatible endpoint)
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`

	// Persistent store
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Candidate-to-task matching
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`

	// Context retrieval
	RAG RAGConfig `yaml:"rag" mapstructure:"rag"`

	// HTTP transport
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

// TicketConfig configures ticket identifier formatting.
type TicketConfig struct {
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// LLMConfig configures the completion capability.
type LLMConfig struct {
	Model string `yaml:"model" mapstructure:"model"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// EmbeddingConfig configures the embedding capability.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MatchingConfig configures the reconciler.
type MatchingConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// RAGConfig configures context retrieval.
type RAGConfig struct {
	ChunkSize      int  `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap   int  `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	PersistChunks  bool `yaml:"persist_chunks" mapstructure:"persist_chunks"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}
