// Chatbot service entry point: HTTP API, health probes and Prometheus
// metrics.
//
// Usage:
//
//	chatbot                       # start with defaults and environment
//	chatbot --config config.yaml  # load a config file first
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Odysseus24/neolatin-chatbot-api/api/handlers"
	"github.com/Odysseus24/neolatin-chatbot-api/backend"
	"github.com/Odysseus24/neolatin-chatbot-api/backend/gemini"
	"github.com/Odysseus24/neolatin-chatbot-api/chat"
	"github.com/Odysseus24/neolatin-chatbot-api/config"
	"github.com/Odysseus24/neolatin-chatbot-api/embedding"
	"github.com/Odysseus24/neolatin-chatbot-api/ingest"
	"github.com/Odysseus24/neolatin-chatbot-api/internal/metrics"
	"github.com/Odysseus24/neolatin-chatbot-api/rag"
	"github.com/Odysseus24/neolatin-chatbot-api/session"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	fs := flag.NewFlagSet("chatbot", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(os.Args[1:])

	// A local .env is a development convenience; absence is fine.
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
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting chatbot",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
	logger.Info("chatbot stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	store, err := rag.OpenSQLiteVectorStore(cfg.Index.Path, logger)
	if err != nil {
		return fmt.Errorf("open index %q: %w", cfg.Index.Path, err)
	}

	embedder := embedding.NewGeminiProvider(embedding.GeminiConfig{
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		Timeout:           cfg.Embedding.Timeout,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})

	backends := make([]backend.Backend, 0, len(cfg.Gemini.FallbackModels))
	for _, model := range cfg.Gemini.FallbackModels {
		backends = append(backends, gemini.New(backend.Config{
			APIKey:  cfg.Gemini.APIKey,
			BaseURL: cfg.Gemini.BaseURL,
			Model:   model,
			Timeout: cfg.Gemini.Timeout,
		}, logger))
	}

	collector := metrics.NewCollector("chatbot", prometheus.DefaultRegisterer)

	orch, err := chat.NewOrchestrator(backends, logger, collector)
	if err != nil {
		return err
	}

	chunker := rag.NewWindowChunker(rag.ChunkingConfig{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
	}, logger)
	ingestor := ingest.NewPipeline(
		chunker,
		embedder,
		ingest.NewPDFExtractor(),
		ingest.NewImageExtractor(orch),
		logger,
		collector,
	)

	prompts := chat.NewPromptBuilder(chat.PromptBuilderConfig{
		HistoryTokenBudget: cfg.Memory.HistoryTokenBudget,
	}, promptTokenizer(logger), rand.New(rand.NewSource(time.Now().UnixNano())))

	resolver := chat.NewResolver(store, cfg.Index.PersistentTopK, cfg.Index.EphemeralTopK)
	pipeline := chat.NewPipeline(resolver, orch, embedder, prompts, ingestor, logger, collector)

	sessions, redisClient := sessionManager(cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	mux := http.NewServeMux()
	handlers.NewChatHandler(pipeline, sessions, cfg.Upload.MaxBytes, logger).Register(mux)

	health := handlers.NewHealthHandler(logger)
	health.RegisterCheck(handlers.HealthCheckFunc{CheckName: "index", Fn: func(ctx context.Context) error {
		_, err := store.Count(ctx)
		return err
	}})
	if redisClient != nil {
		health.RegisterCheck(handlers.HealthCheckFunc{CheckName: "redis", Fn: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	health.Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}

// sessionManager picks Redis-backed conversation memory when enabled,
// in-process buffers otherwise.
func sessionManager(cfg config.RedisConfig, logger *zap.Logger) (*session.Manager, *redis.Client) {
	if !cfg.Enabled {
		return session.NewManager(nil), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger.Info("using redis conversation memory", zap.String("addr", cfg.Addr))
	return session.NewManager(func(sessionID string) session.Memory {
		return session.NewRedisMemory(client, sessionID, cfg.TTL)
	}), client
}

// promptTokenizer prefers a real BPE count, falling back to the character
// estimate when the vocabulary cannot be loaded.
func promptTokenizer(logger *zap.Logger) chat.Tokenizer {
	tok, err := chat.NewTiktokenTokenizer("cl100k_base")
	if err != nil {
		logger.Warn("tiktoken unavailable, using token estimate", zap.Error(err))
		return chat.EstimateTokenizer{}
	}
	return tok
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableCaller = !cfg.EnableCaller

	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
