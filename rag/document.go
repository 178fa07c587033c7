// Package rag provides the retrieval side of the chatbot: document and chunk
// model, chunking, and vector stores for the persistent knowledge base and
// the ephemeral per-session index.
package rag

import "github.com/google/uuid"

// Document is a unit of raw extracted text prior to chunking.
type Document struct {
	ID      string `json:"id"`
	Source  string `json:"source"` // originating filename
	Content string `json:"content"`
}

// NewDocument creates a document with a generated ID.
func NewDocument(source, content string) Document {
	return Document{
		ID:      uuid.NewString(),
		Source:  source,
		Content: content,
	}
}

// Chunk is a bounded span of document text prepared for indexing.
// Chunks are never mutated after creation; ownership transfers to whichever
// vector store they are inserted into.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	Position   int       `json:"position"` // ordinal within the document
	Embedding  []float64 `json:"embedding,omitempty"`
}
