package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Odysseus24/neolatin-chatbot-api/embedding"
)

func TestLoader_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, []string{
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
	}, cfg.Gemini.FallbackModels)
	assert.Equal(t, 5, cfg.Index.PersistentTopK)
	assert.Equal(t, 3, cfg.Index.EphemeralTopK)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 200, cfg.Chunking.ChunkOverlap)
	assert.False(t, cfg.Redis.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestDefaults_MatchClientDefaults(t *testing.T) {
	cfg := DefaultConfig()

	// Both API clients append the /v1beta segment themselves, so the
	// configured base URLs must be the bare host.
	assert.Equal(t, embedding.DefaultGeminiConfig().BaseURL, cfg.Embedding.BaseURL)
	assert.Equal(t, cfg.Gemini.BaseURL, cfg.Embedding.BaseURL)
	assert.NotContains(t, cfg.Embedding.BaseURL, "/v1beta")
	assert.Equal(t, embedding.DefaultGeminiConfig().Model, cfg.Embedding.Model)
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9000
gemini:
  fallback_models:
    - gemini-2.5-flash
index:
  persistent_top_k: 10
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"gemini-2.5-flash"}, cfg.Gemini.FallbackModels)
	assert.Equal(t, 10, cfg.Index.PersistentTopK)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Index.EphemeralTopK)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o644))

	t.Setenv("CHATBOT_SERVER_HTTP_PORT", "9100")
	t.Setenv("CHATBOT_GEMINI_API_KEY", "test-key")
	t.Setenv("CHATBOT_GEMINI_FALLBACK_MODELS", "gemini-2.5-pro, gemini-2.0-flash")
	t.Setenv("CHATBOT_GEMINI_TIMEOUT", "90s")
	t.Setenv("CHATBOT_REDIS_ENABLED", "true")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.HTTPPort)
	assert.Equal(t, "test-key", cfg.Gemini.APIKey)
	assert.Equal(t, []string{"gemini-2.5-pro", "gemini-2.0-flash"}, cfg.Gemini.FallbackModels)
	assert.Equal(t, 90*time.Second, cfg.Gemini.Timeout)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("does-not-exist.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
}

func TestLoader_ValidatorRuns(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			c.Chunking.ChunkOverlap = c.Chunking.ChunkSize
			return c.Validate()
		}).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.HTTPPort = 0 }},
		{"no models", func(c *Config) { c.Gemini.FallbackModels = nil }},
		{"zero top_k", func(c *Config) { c.Index.PersistentTopK = 0 }},
		{"overlap >= size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }},
		{"zero upload limit", func(c *Config) { c.Upload.MaxBytes = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
