// Package ingest turns uploaded files into a searchable per-session index.
package ingest

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Odysseus24/neolatin-chatbot-api/embedding"
	"github.com/Odysseus24/neolatin-chatbot-api/internal/metrics"
	"github.com/Odysseus24/neolatin-chatbot-api/rag"
	"github.com/Odysseus24/neolatin-chatbot-api/session"
	"github.com/Odysseus24/neolatin-chatbot-api/types"
)

// Pipeline extracts, chunks, embeds and indexes one uploaded document.
// The resulting index is ephemeral: it lives on the session and never
// touches the persistent knowledge base.
type Pipeline struct {
	chunker  *rag.WindowChunker
	embedder embedding.Provider
	pdf      TextExtractor
	image    TextExtractor
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NewPipeline wires an ingestion pipeline. The image extractor may be nil,
// in which case image uploads are rejected as unsupported.
func NewPipeline(chunker *rag.WindowChunker, embedder embedding.Provider, pdf, image TextExtractor, logger *zap.Logger, collector *metrics.Collector) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		pdf:      pdf,
		image:    image,
		logger:   logger,
		metrics:  collector,
	}
}

// Ingest processes one upload end to end and returns the document context
// to install on the session. The caller decides when (and whether) to
// install it; a failed ingestion leaves every session untouched.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, filename string) (*session.DocumentContext, error) {
	kind, err := p.classify(filename)
	if err != nil {
		p.metrics.ObserveIngest("unknown", "rejected")
		return nil, err
	}

	doc, err := p.extract(ctx, kind, data, filename)
	if err != nil {
		p.metrics.ObserveIngest(string(kind), "error")
		return nil, err
	}

	index, err := p.buildIndex(ctx, doc)
	if err != nil {
		p.metrics.ObserveIngest(string(kind), "error")
		return nil, err
	}

	chunkCount, _ := index.Count(ctx)
	p.metrics.ObserveIngest(string(kind), "success")
	p.logger.Info("document ingested",
		zap.String("filename", filename),
		zap.String("type", string(kind)),
		zap.Int("chars", len(doc.Content)),
		zap.Int("chunks", chunkCount),
	)
	return &session.DocumentContext{
		Filename:  filename,
		Text:      doc.Content,
		Index:     index,
		CreatedAt: time.Now(),
	}, nil
}

func (p *Pipeline) classify(filename string) (Kind, error) {
	ext := lowerExt(filename)
	switch {
	case ext == ".pdf":
		return KindPDF, nil
	case mimeByExt[ext] != "":
		if p.image == nil {
			return "", types.NewError(types.ErrUnsupportedType, "image uploads are not enabled").
				WithHTTPStatus(http.StatusBadRequest)
		}
		return KindImage, nil
	default:
		return "", types.NewError(types.ErrUnsupportedType, "unsupported file type "+ext).
			WithHTTPStatus(http.StatusBadRequest)
	}
}

func (p *Pipeline) extract(ctx context.Context, kind Kind, data []byte, filename string) (rag.Document, error) {
	var (
		text string
		err  error
	)
	switch kind {
	case KindPDF:
		text, err = p.pdf.Extract(ctx, data, filename)
	case KindImage:
		text, err = p.image.Extract(ctx, data, filename)
	}
	if err != nil {
		return rag.Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return rag.Document{}, types.NewError(types.ErrNoExtractableText, "no extractable text in "+filename).
			WithHTTPStatus(http.StatusBadRequest)
	}
	return rag.NewDocument(filename, text), nil
}

// buildIndex chunks the document, embeds every chunk and loads an
// in-memory store.
func (p *Pipeline) buildIndex(ctx context.Context, doc rag.Document) (rag.VectorStore, error) {
	chunks := p.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return nil, types.NewError(types.ErrNoExtractableText, "document produced no chunks").
			WithHTTPStatus(http.StatusBadRequest)
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, contents)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	index := rag.NewInMemoryVectorStore(p.logger)
	if err := index.AddChunks(ctx, chunks); err != nil {
		return nil, err
	}
	return index, nil
}

func lowerExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
