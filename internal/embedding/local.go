// Package embedding turns text into fixed-dimension vectors for the
// similarity index and context retriever.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultEndpoint = "http://localhost:11434/api/embed"
	defaultModel    = "nomic-embed-text"

	embedAttempts  = 3
	embedBaseDelay = 2 * time.Second
)

// Embedder generates vector embeddings for text content.
type Embedder interface {
	// EmbedDocument embeds a text for storage/indexing.
	EmbedDocument(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery embeds a search query (may use a different prefix).
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// LocalClient calls an Ollama-compatible /api/embed endpoint. Nomic
// models distinguish indexing from querying via task prefixes, so
// documents go in as "search_document: ..." and queries as
// "search_query: ...".
type LocalClient struct {
	endpoint string
	model    string
	http     *http.Client
}

// Option configures a LocalClient.
type Option func(*LocalClient)

// WithEndpoint points the client at a different embed URL.
func WithEndpoint(url string) Option {
	return func(c *LocalClient) { c.endpoint = url }
}

// WithModel selects the embedding model.
func WithModel(model string) Option {
	return func(c *LocalClient) { c.model = model }
}

// NewLocalClient returns a client for a locally hosted embedding
// server, defaulting to nomic-embed-text on localhost:11434.
func NewLocalClient(opts ...Option) *LocalClient {
	c := &LocalClient{
		endpoint: defaultEndpoint,
		model:    defaultModel,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedPayload struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedReply struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedDocument embeds a text for storage.
func (c *LocalClient) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, "search_document: "+text)
}

// EmbedQuery embeds a search query.
func (c *LocalClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return c.embed(ctx, "search_query: "+query)
}

func (c *LocalClient) embed(ctx context.Context, input string) ([]float32, error) {
	body, err := json.Marshal(embedPayload{Model: c.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("encode embed payload: %w", err)
	}

	wait := embedBaseDelay
	var lastErr error
	for attempt := 1; attempt <= embedAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(wait):
				wait *= 2
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vec, retry, err := c.post(ctx, body)
		if err == nil {
			return vec, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("embedding unavailable after %d attempts: %w", embedAttempts, lastErr)
}

// post performs one round trip. The bool reports whether the failure
// is worth retrying: transport errors and 5xx are, everything else is
// terminal.
func (c *LocalClient) post(ctx context.Context, body []byte) ([]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("embed call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read embed reply: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, string(data))
		return nil, resp.StatusCode >= 500, err
	}

	var reply embedReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, false, fmt.Errorf("decode embed reply: %w", err)
	}
	if len(reply.Embeddings) == 0 {
		return nil, false, fmt.Errorf("embedding reply contained no vectors")
	}
	return reply.Embeddings[0], false, nil
}
