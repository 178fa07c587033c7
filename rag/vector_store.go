package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// VectorStore is the nearest-neighbor index over embedded chunks.
// Two lifecycles exist: the persistent knowledge-base index (built offline,
// read-only at serve time) and the ephemeral per-upload index (replaced
// wholesale on each upload).
type VectorStore interface {
	// AddChunks inserts embedded chunks.
	AddChunks(ctx context.Context, chunks []Chunk) error

	// Search returns the topK most similar chunks to the query embedding,
	// best first.
	Search(ctx context.Context, queryEmbedding []float64, topK int) ([]SearchResult, error)

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)
}

// Clearable is an optional interface for VectorStore implementations that
// support clearing all stored data. Use type assertion to check support:
//
//	if c, ok := store.(Clearable); ok { c.ClearAll(ctx) }
type Clearable interface {
	ClearAll(ctx context.Context) error
}

// SearchResult pairs a chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// InMemoryVectorStore is a brute-force cosine-similarity store. It backs the
// ephemeral per-session index, which holds a single uploaded document.
type InMemoryVectorStore struct {
	chunks []Chunk
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewInMemoryVectorStore creates an empty in-memory store.
func NewInMemoryVectorStore(logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		chunks: make([]Chunk, 0),
		logger: logger,
	}
}

// AddChunks inserts embedded chunks.
func (s *InMemoryVectorStore) AddChunks(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if c.Embedding == nil {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		s.chunks = append(s.chunks, c)
	}

	s.logger.Debug("chunks added to vector store",
		zap.Int("count", len(chunks)),
		zap.Int("total", len(s.chunks)))

	return nil
}

// Search computes cosine similarity against every stored chunk.
func (s *InMemoryVectorStore) Search(ctx context.Context, queryEmbedding []float64, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return bruteForceSearch(s.chunks, queryEmbedding, topK), nil
}

// Count returns the chunk count.
func (s *InMemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// ClearAll removes all chunks from the store.
func (s *InMemoryVectorStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make([]Chunk, 0)
	return nil
}

// bruteForceSearch scores every chunk and returns the topK best, in
// descending score order.
func bruteForceSearch(chunks []Chunk, queryEmbedding []float64, topK int) []SearchResult {
	if len(chunks) == 0 || topK <= 0 {
		return []SearchResult{}
	}

	results := make([]SearchResult, 0, len(chunks))
	for _, c := range chunks {
		if c.Embedding == nil {
			continue
		}
		results = append(results, SearchResult{
			Chunk: c,
			Score: cosineSimilarity(queryEmbedding, c.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK]
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
