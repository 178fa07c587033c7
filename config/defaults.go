package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Gemini:    DefaultGeminiConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Index:     DefaultIndexConfig(),
		Chunking:  DefaultChunkingConfig(),
		Memory:    DefaultMemoryConfig(),
		Redis:     DefaultRedisConfig(),
		Upload:    DefaultUploadConfig(),
		Log:       DefaultLogConfig(),
	}
}

// DefaultServerConfig returns the default HTTP listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultGeminiConfig returns the default backend cascade, strongest
// model first.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		BaseURL: "https://generativelanguage.googleapis.com",
		FallbackModels: []string{
			"gemini-2.5-pro",
			"gemini-2.5-flash",
			"gemini-2.0-flash",
			"gemini-2.0-flash-lite",
		},
		Timeout: 60 * time.Second,
	}
}

// DefaultEmbeddingConfig returns the default embedding provider settings.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BaseURL:           "https://generativelanguage.googleapis.com",
		Model:             "gemini-embedding-001",
		RequestsPerSecond: 5,
		Timeout:           30 * time.Second,
	}
}

// DefaultIndexConfig returns the default index settings.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		Path:           "data/index.db",
		PersistentTopK: 5,
		EphemeralTopK:  3,
	}
}

// DefaultChunkingConfig returns the default splitting geometry.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// DefaultMemoryConfig returns the default conversation settings.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		HistoryTokenBudget: 8000,
	}
}

// DefaultRedisConfig returns the default Redis settings (disabled).
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled: false,
		Addr:    "localhost:6379",
		DB:      0,
		TTL:     24 * time.Hour,
	}
}

// DefaultUploadConfig returns the default upload limits.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		MaxBytes: 32 << 20, // 32 MiB
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		EnableCaller: true,
	}
}
