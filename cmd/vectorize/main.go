// Vectorize rebuilds the persistent knowledge-base index from a directory
// of PDF documents.
//
// Usage:
//
//	vectorize --docs ./documents --config config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Odysseus24/neolatin-chatbot-api/config"
	"github.com/Odysseus24/neolatin-chatbot-api/embedding"
	"github.com/Odysseus24/neolatin-chatbot-api/ingest"
	"github.com/Odysseus24/neolatin-chatbot-api/rag"
)

const embedWorkers = 4

func main() {
	flags := flag.NewFlagSet("vectorize", flag.ExitOnError)
	docsDir := flags.String("docs", "documents", "Directory of PDF documents")
	configPath := flags.String("config", "", "Path to config file")
	flags.Parse(os.Args[1:])

	_ = godotenv.Load()

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(context.Background(), cfg, *docsDir, logger); err != nil {
		logger.Fatal("vectorize failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, docsDir string, logger *zap.Logger) error {
	pdfs, err := findPDFs(docsDir)
	if err != nil {
		return err
	}
	if len(pdfs) == 0 {
		return fmt.Errorf("no PDF documents found in %q", docsDir)
	}
	logger.Info("vectorizing documents",
		zap.String("dir", docsDir),
		zap.Int("documents", len(pdfs)),
	)

	chunker := rag.NewWindowChunker(rag.ChunkingConfig{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
	}, logger)
	extractor := ingest.NewPDFExtractor()

	var chunks []rag.Chunk
	for _, path := range pdfs {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %q: %w", path, err)
		}
		text, err := extractor.Extract(ctx, data, path)
		if err != nil {
			return fmt.Errorf("extract %q: %w", path, err)
		}
		if strings.TrimSpace(text) == "" {
			logger.Warn("document has no extractable text, skipping", zap.String("path", path))
			continue
		}
		docChunks := chunker.Chunk(rag.NewDocument(filepath.Base(path), text))
		logger.Info("document chunked",
			zap.String("path", path),
			zap.Int("chunks", len(docChunks)),
		)
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks produced from %q", docsDir)
	}

	embedder := embedding.NewGeminiProvider(embedding.GeminiConfig{
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		Timeout:           cfg.Embedding.Timeout,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
	if err := embedChunks(ctx, embedder, embedder.MaxBatchSize(), chunks); err != nil {
		return err
	}

	store, err := rag.OpenSQLiteVectorStore(cfg.Index.Path, logger)
	if err != nil {
		return fmt.Errorf("open index %q: %w", cfg.Index.Path, err)
	}
	if err := store.Rebuild(ctx, chunks); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	logger.Info("index rebuilt",
		zap.String("path", cfg.Index.Path),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// embedChunks embeds all chunks with a bounded number of concurrent
// batches, writing vectors back in place.
func embedChunks(ctx context.Context, embedder embedding.Provider, batchSize int, chunks []rag.Chunk) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)

	var mu sync.Mutex
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end

		g.Go(func() error {
			contents := make([]string, end-start)
			for i := start; i < end; i++ {
				contents[i-start] = chunks[i].Content
			}
			vectors, err := embedder.EmbedDocuments(ctx, contents)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
			}
			mu.Lock()
			for i := start; i < end; i++ {
				chunks[i].Embedding = vectors[i-start]
			}
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func findPDFs(dir string) ([]string, error) {
	var pdfs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			pdfs = append(pdfs, path)
		}
		return nil
	})
	return pdfs, err
}
