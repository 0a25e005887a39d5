package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/azmainm/standup-tickets/internal/embedding"
	"github.com/azmainm/standup-tickets/internal/transcript"
)

// Source identifies a retrieved passage.
type Source struct {
	ChunkID      string  `json:"chunk_id"`
	TranscriptID string  `json:"transcript_id"`
	Similarity   float64 `json:"similarity"`
}

// Context is the retrieval result: passages joined for prompt use plus
// their provenance.
type Context struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Options controls a retrieval. When Scoped is set the search is
// restricted to the given transcript index (no cross-meeting leakage);
// otherwise it spans the durable cross-meeting chunk store.
type Options struct {
	Scoped         *TranscriptIndex
	TopK           int
	ScoreThreshold float64
}

type chunkEntry struct {
	id           string
	transcriptID string
	content      string
	vec          []float32
}

// TranscriptIndex is the transcript-scoped ephemeral chunk index. It
// lives inside one invocation's scope and is dropped at end of
// processing.
type TranscriptIndex struct {
	TranscriptID string
	entries      []chunkEntry
}

// Len returns the number of chunks indexed.
func (ti *TranscriptIndex) Len() int {
	return len(ti.entries)
}

// Retriever embeds transcript chunks and performs scoped or global
// nearest-neighbor retrieval over them.
type Retriever struct {
	db           *sql.DB
	embedder     embedding.Embedder
	chunkSize    int
	chunkOverlap int
}

// NewRetriever creates a retriever sharing the store's database for the
// durable cross-meeting chunk store.
func NewRetriever(db *sql.DB, embedder embedding.Embedder, chunkSize, chunkOverlap int) *Retriever {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Retriever{db: db, embedder: embedder, chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// IndexTranscript chunks and embeds the transcript, returning the
// ephemeral scoped index. When persist is true the chunks are also
// written to the durable store for future global retrieval. Chunks that
// fail to embed are skipped; the rest of the index is still usable.
func (r *Retriever) IndexTranscript(ctx context.Context, transcriptID string, lines []transcript.Line, persist bool) (*TranscriptIndex, error) {
	text := transcript.Join(lines)
	chunks := SplitOverlapping(text, r.chunkSize, r.chunkOverlap)

	ti := &TranscriptIndex{TranscriptID: transcriptID}
	for seq, content := range chunks {
		vec, err := r.embedder.EmbedDocument(ctx, content)
		if err != nil {
			log.Printf("Warning: chunk %d of transcript %s not embedded: %v", seq, transcriptID, err)
			continue
		}
		entry := chunkEntry{
			id:           uuid.NewString(),
			transcriptID: transcriptID,
			content:      content,
			vec:          normalize(vec),
		}
		ti.entries = append(ti.entries, entry)

		if persist {
			if err := r.persistChunk(ctx, entry, seq); err != nil {
				log.Printf("Warning: chunk %d of transcript %s not persisted: %v", seq, transcriptID, err)
			}
		}
	}
	return ti, nil
}

func (r *Retriever) persistChunk(ctx context.Context, e chunkEntry, seq int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chunks (id, transcript_id, seq, content, embedding, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.id, e.transcriptID, seq, e.content, float32ToBlob(e.vec), len(e.vec), time.Now().UTC())
	return err
}

// RetrieveContext returns the passages most relevant to the query. If
// the embedding capability is unavailable it degrades to an empty
// context rather than failing, so the caller's merge falls back to its
// basic strategy.
func (r *Retriever) RetrieveContext(ctx context.Context, query string, opts Options) (*Context, error) {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Printf("Warning: context retrieval degraded to empty: %v", err)
		return &Context{}, nil
	}
	normalized := normalize(queryVec)

	var entries []chunkEntry
	if opts.Scoped != nil {
		entries = opts.Scoped.entries
	} else {
		entries, err = r.loadAllChunks(ctx)
		if err != nil {
			return nil, fmt.Errorf("load chunk store: %w", err)
		}
	}

	type scored struct {
		entry chunkEntry
		score float64
	}
	var hits []scored
	for _, e := range entries {
		if len(e.vec) != len(normalized) {
			continue
		}
		score := dotProduct(normalized, e.vec)
		if score >= opts.ScoreThreshold {
			hits = append(hits, scored{entry: e, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}

	result := &Context{}
	var passages []string
	for _, h := range hits {
		passages = append(passages, h.entry.content)
		result.Sources = append(result.Sources, Source{
			ChunkID:      h.entry.id,
			TranscriptID: h.entry.transcriptID,
			Similarity:   h.score,
		})
	}
	result.Text = strings.Join(passages, "\n---\n")
	return result, nil
}

func (r *Retriever) loadAllChunks(ctx context.Context) ([]chunkEntry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, transcript_id, content, embedding, dimensions FROM chunks")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []chunkEntry
	for rows.Next() {
		var e chunkEntry
		var blob []byte
		var dims int
		if err := rows.Scan(&e.id, &e.transcriptID, &e.content, &blob, &dims); err != nil {
			return nil, err
		}
		e.vec = blobToFloat32(blob, dims)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- math/serialization helpers ---

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func float32ToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func blobToFloat32(b []byte, dims int) []float32 {
	v := make([]float32, dims)
	for i := 0; i < dims && i*4+4 <= len(b); i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
