package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeqa/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codeqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "indexer:\n  root: ./src\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "./src", cfg.Indexer.Root)
	assert.Equal(t, []string{".py"}, cfg.Indexer.Extensions)
	assert.Equal(t, []string{"def ", "class "}, cfg.Indexer.Markers)
	assert.False(t, cfg.Indexer.KeepPreamble)
	assert.Equal(t, KeyModeName, cfg.Indexer.KeyMode)
	assert.Equal(t, "heuristic", cfg.Retrieval.Strategy)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 0.05, cfg.Heuristic.Threshold)
	assert.Equal(t, ProviderOllama, cfg.Generation.Provider)
	assert.Equal(t, "llama3.1:latest", cfg.Generation.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Generation.BaseURL)
	assert.Equal(t, "all-minilm", cfg.Embedding.Model)
	assert.Equal(t, 256, cfg.Embedding.QueryCacheSize)
}

func TestLoad_FileEnvAndFlagPrecedence(t *testing.T) {
	path := writeConfig(t, `
indexer:
  root: ./from-file
  extensions: [".py", ".pyi"]
  keep_preamble: true
retrieval:
  strategy: embedding
  top_k: 5
embedding:
  provider: ollama
  timeout: 30s
generation:
  model: from-file
`)
	t.Setenv("CODEQA_RETRIEVAL_TOP_K", "7")
	t.Setenv("CODEQA_GENERATION_MODEL", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("model", "", "")
	flags.String("root", "", "")
	require.NoError(t, flags.Parse([]string{"--model=from-flag"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "./from-file", cfg.Indexer.Root, "unchanged flag does not override")
	assert.Equal(t, []string{".py", ".pyi"}, cfg.Indexer.Extensions)
	assert.True(t, cfg.Indexer.KeepPreamble)
	assert.Equal(t, "embedding", cfg.Retrieval.Strategy)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, "from-flag", cfg.Generation.Model)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestLoad_ProviderAPIKeysFromEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	path := writeConfig(t, "generation:\n  provider: anthropic\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.Generation.APIKey)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Generation.Model)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty root", func(c *Config) { c.Indexer.Root = " " }, "indexer.root"},
		{"no extensions", func(c *Config) { c.Indexer.Extensions = nil }, "indexer.extensions"},
		{"bad key mode", func(c *Config) { c.Indexer.KeyMode = "hash" }, "key_mode"},
		{"bad strategy", func(c *Config) { c.Retrieval.Strategy = "bm25" }, "bm25"},
		{"zero k", func(c *Config) { c.Retrieval.TopK = 0 }, "top_k"},
		{"negative weight", func(c *Config) { c.Heuristic.WordWeight = -0.1 }, "negative"},
		{"weights not summing to one", func(c *Config) { c.Heuristic.WordWeight = 0.5 }, "sum to 1"},
		{"threshold of one", func(c *Config) { c.Heuristic.Threshold = 1 }, "threshold"},
		{"unknown generator", func(c *Config) { c.Generation.Provider = "gemini" }, "generation.provider"},
		{"anthropic without key", func(c *Config) { c.Generation.Provider = ProviderAnthropic }, "ANTHROPIC_API_KEY"},
		{"unknown embedder", func(c *Config) {
			c.Retrieval.Strategy = "embedding"
			c.Embedding.Provider = "fastembed"
		}, "embedding.provider"},
		{"negative cache", func(c *Config) { c.Embedding.QueryCacheSize = -1 }, "query_cache_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Conversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Indexer.KeepPreamble = true

	assert.Equal(t, domain.ExtractorOptions{Markers: []string{"def ", "class "}, KeepPreamble: true}, cfg.ExtractorOptions())
	assert.Equal(t, domain.DefaultHeuristicOptions(), cfg.HeuristicOptions())
}

func TestSchema(t *testing.T) {
	schema, err := Schema()
	require.NoError(t, err)

	s := string(schema)
	assert.Contains(t, s, `"indexer"`)
	assert.Contains(t, s, `"keep_preamble"`)
	assert.Contains(t, s, `"top_k"`)
	assert.Contains(t, s, "codeqa configuration")
}
