// Package embedding provides the embedding-provider contract used by
// retrieval and ingestion.
package embedding

import "context"

// Provider maps text to fixed-dimension vectors.
type Provider interface {
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// EmbedDocuments embeds document chunks for indexing.
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	// Name returns the provider name.
	Name() string

	// Dimensions returns the embedding dimension.
	Dimensions() int
}
