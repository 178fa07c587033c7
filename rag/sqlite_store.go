package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// chunkRow is the on-disk representation of an embedded chunk. The embedding
// is serialized as JSON; similarity is computed in process, not in SQL.
type chunkRow struct {
	ID         string `gorm:"primaryKey"`
	DocumentID string `gorm:"index"`
	Source     string
	Content    string
	Position   int
	Embedding  []byte
}

func (chunkRow) TableName() string { return "chunks" }

// SQLiteVectorStore persists embedded chunks in a SQLite file. It backs the
// persistent knowledge-base index: built once by the offline vectorize job,
// read-only at serve time. Rows are cached in memory after the first search.
type SQLiteVectorStore struct {
	db     *gorm.DB
	logger *zap.Logger

	mu     sync.RWMutex
	cache  []Chunk
	loaded bool
}

// OpenSQLiteVectorStore opens (creating if needed) a SQLite-backed store at
// the given path.
func OpenSQLiteVectorStore(path string, logger *zap.Logger) (*SQLiteVectorStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}

	if err := db.AutoMigrate(&chunkRow{}); err != nil {
		return nil, fmt.Errorf("migrate index schema: %w", err)
	}

	return &SQLiteVectorStore{db: db, logger: logger}, nil
}

// AddChunks inserts embedded chunks in batches.
func (s *SQLiteVectorStore) AddChunks(ctx context.Context, chunks []Chunk) error {
	rows := make([]chunkRow, 0, len(chunks))
	for _, c := range chunks {
		if c.Embedding == nil {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		data, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %s: %w", c.ID, err)
		}
		rows = append(rows, chunkRow{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Source:     c.Source,
			Content:    c.Content,
			Position:   c.Position,
			Embedding:  data,
		})
	}

	if err := s.db.WithContext(ctx).CreateInBatches(rows, 200).Error; err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	s.mu.Lock()
	s.loaded = false
	s.cache = nil
	s.mu.Unlock()

	s.logger.Info("chunks persisted to index", zap.Int("count", len(rows)))
	return nil
}

// Search loads all chunks (cached after the first call) and scores them by
// cosine similarity.
func (s *SQLiteVectorStore) Search(ctx context.Context, queryEmbedding []float64, topK int) ([]SearchResult, error) {
	chunks, err := s.allChunks(ctx)
	if err != nil {
		return nil, err
	}
	return bruteForceSearch(chunks, queryEmbedding, topK), nil
}

// Count returns the number of persisted chunks.
func (s *SQLiteVectorStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&chunkRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return int(n), nil
}

// ClearAll removes every chunk. The vectorize job calls this before a
// rebuild; the serving path never does.
func (s *SQLiteVectorStore) ClearAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&chunkRow{}).Error; err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	s.mu.Lock()
	s.loaded = false
	s.cache = nil
	s.mu.Unlock()
	return nil
}

// Rebuild atomically replaces the whole index contents. Each run is a full,
// idempotent rebuild; there is no incremental mode.
func (s *SQLiteVectorStore) Rebuild(ctx context.Context, chunks []Chunk) error {
	if err := s.ClearAll(ctx); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	return s.AddChunks(ctx, chunks)
}

func (s *SQLiteVectorStore) allChunks(ctx context.Context) ([]Chunk, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.cache, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cache, nil
	}

	var rows []chunkRow
	if err := s.db.WithContext(ctx).Order("source, position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	chunks := make([]Chunk, 0, len(rows))
	for _, r := range rows {
		var emb []float64
		if err := json.Unmarshal(r.Embedding, &emb); err != nil {
			return nil, fmt.Errorf("decode embedding for chunk %s: %w", r.ID, err)
		}
		chunks = append(chunks, Chunk{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			Source:     r.Source,
			Content:    r.Content,
			Position:   r.Position,
			Embedding:  emb,
		})
	}

	s.cache = chunks
	s.loaded = true
	s.logger.Info("index loaded", zap.Int("chunks", len(chunks)))
	return chunks, nil
}
