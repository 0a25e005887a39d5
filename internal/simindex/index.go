// Package simindex maintains the embedding index over all known task
// texts. It is a derived, rebuildable structure: the task store record
// stays authoritative and the index can be regenerated from it at any
// time. Not safe for concurrent writers; the caller serializes runs
// (one active reconciliation per store).
package simindex

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/azmainm/standup-tickets/internal/embedding"
	"github.com/azmainm/standup-tickets/internal/task"
)

// Match pairs a ticket id with a cosine similarity score.
type Match struct {
	TicketID   string
	Similarity float64
}

// Index is a brute-force cosine KNN index over task embeddings, backed
// by SQLite BLOBs with an in-memory cache. Vectors are normalized on
// insert so dot product equals cosine similarity. At the scale of an
// active task store (hundreds of rows) brute force is exact and fast.
type Index struct {
	db       *sql.DB
	embedder embedding.Embedder

	mu       sync.RWMutex
	vectors  map[string][]float32
	embedded map[string]time.Time // ticket_id -> last_embedded
	loadedAt time.Time
}

// cacheFreshness is how long a loaded cache is trusted before a reload
// from SQLite on the next operation.
const cacheFreshness = 30 * time.Second

// New creates an index sharing the store's SQLite database and loads
// existing vectors into memory.
func New(db *sql.DB, embedder embedding.Embedder) (*Index, error) {
	idx := &Index{
		db:       db,
		embedder: embedder,
		vectors:  make(map[string][]float32),
		embedded: make(map[string]time.Time),
	}
	if err := idx.loadAll(); err != nil {
		return nil, fmt.Errorf("simindex load: %w", err)
	}
	return idx, nil
}

func (idx *Index) loadAll() error {
	rows, err := idx.db.Query("SELECT ticket_id, embedding, dimensions, last_embedded FROM task_vectors")
	if err != nil {
		return err
	}
	defer rows.Close()

	vectors := make(map[string][]float32)
	embedded := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var blob []byte
		var dims int
		var at time.Time
		if err := rows.Scan(&id, &blob, &dims, &at); err != nil {
			return err
		}
		vectors[id] = blobToFloat32(blob, dims)
		embedded[id] = at
	}
	if err := rows.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	idx.vectors = vectors
	idx.embedded = embedded
	idx.loadedAt = time.Now()
	idx.mu.Unlock()
	return nil
}

// refresh reloads from SQLite when the cache is past its freshness
// window, picking up writes from a previous process.
func (idx *Index) refresh() {
	idx.mu.RLock()
	stale := time.Since(idx.loadedAt) > cacheFreshness
	idx.mu.RUnlock()
	if stale {
		if err := idx.loadAll(); err != nil {
			log.Printf("Warning: similarity index reload failed: %v", err)
		}
	}
}

// Add embeds the task's text and stores the vector, replacing any
// existing entry for the ticket.
func (idx *Index) Add(ctx context.Context, t *task.Task) error {
	vec, err := idx.embedder.EmbedDocument(ctx, t.EmbeddingText())
	if err != nil {
		return fmt.Errorf("embed task %s: %w", t.TicketID, err)
	}
	return idx.put(ctx, t.TicketID, vec)
}

func (idx *Index) put(ctx context.Context, ticketID string, vec []float32) error {
	normalized := normalize(vec)
	blob := float32ToBlob(normalized)
	now := time.Now().UTC()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO task_vectors (ticket_id, embedding, dimensions, last_embedded)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticket_id) DO UPDATE SET
			embedding=excluded.embedding,
			dimensions=excluded.dimensions,
			last_embedded=excluded.last_embedded
	`, ticketID, blob, len(normalized), now)
	if err != nil {
		return err
	}

	idx.vectors[ticketID] = normalized
	idx.embedded[ticketID] = now
	return nil
}

// Remove deletes a ticket's vector.
func (idx *Index) Remove(ctx context.Context, ticketID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, err := idx.db.ExecContext(ctx, "DELETE FROM task_vectors WHERE ticket_id = ?", ticketID); err != nil {
		return err
	}
	delete(idx.vectors, ticketID)
	delete(idx.embedded, ticketID)
	return nil
}

// Search embeds the query and returns the top-k tickets above the
// score threshold, best first. If the embedding capability is erroring
// the index degrades to no matches rather than failing, so the caller
// can fall back to its secondary matching strategy.
func (idx *Index) Search(ctx context.Context, query string, k int, threshold float64) ([]Match, error) {
	if k <= 0 {
		k = 5
	}
	idx.refresh()

	queryVec, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Printf("Warning: similarity search degraded to no matches: %v", err)
		return nil, nil
	}
	normalizedQuery := normalize(queryVec)

	idx.mu.RLock()
	h := &minHeap{}
	heap.Init(h)
	for id, vec := range idx.vectors {
		if len(vec) != len(normalizedQuery) {
			continue
		}
		score := dotProduct(normalizedQuery, vec)
		if score < threshold {
			continue
		}
		if h.Len() < k {
			heap.Push(h, Match{TicketID: id, Similarity: score})
		} else if score > (*h)[0].Similarity {
			(*h)[0] = Match{TicketID: id, Similarity: score}
			heap.Fix(h, 0)
		}
	}
	idx.mu.RUnlock()

	matches := make([]Match, h.Len())
	for i := len(matches) - 1; i >= 0; i-- {
		matches[i] = heap.Pop(h).(Match)
	}
	return matches, nil
}

// Count returns the number of indexed tickets.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// minHeap keeps the k best matches with the worst at the root.
type minHeap []Match

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].Similarity < h[j].Similarity }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(Match)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// --- math helpers ---

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

// --- serialization helpers ---

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
