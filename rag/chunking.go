package rag

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChunkingConfig controls the fixed-window chunker. Sizes are in characters
// (runes), matching the corpus builder used for the knowledge base.
type ChunkingConfig struct {
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`
}

// DefaultChunkingConfig returns the chunk geometry used for both the
// persistent corpus and uploaded documents.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// WindowChunker splits raw text into fixed-size overlapping windows.
type WindowChunker struct {
	config ChunkingConfig
	logger *zap.Logger
}

// NewWindowChunker creates a chunker. Invalid geometry falls back to the
// defaults; overlap must stay below the window size or the cursor would not
// advance.
func NewWindowChunker(config ChunkingConfig, logger *zap.Logger) *WindowChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ChunkSize <= 0 {
		config = DefaultChunkingConfig()
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	return &WindowChunker{config: config, logger: logger}
}

// Chunk splits the document into overlapping windows. Empty or
// whitespace-only content yields no chunks.
func (c *WindowChunker) Chunk(doc Document) []Chunk {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil
	}

	runes := []rune(content)
	step := c.config.ChunkSize - c.config.ChunkOverlap

	var chunks []Chunk
	for start, pos := 0, 0; start < len(runes); start, pos = start+step, pos+1 {
		end := start + c.config.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Source:     doc.Source,
			Content:    string(runes[start:end]),
			Position:   pos,
		})

		if end == len(runes) {
			break
		}
	}

	c.logger.Debug("document chunked",
		zap.String("source", doc.Source),
		zap.Int("chars", len(runes)),
		zap.Int("chunks", len(chunks)))

	return chunks
}
