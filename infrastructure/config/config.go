package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeqa/domain"
)

// Embedding and generation backends.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Snippet key modes.
const (
	KeyModeName     = "name"     // "{fileName}_part{i}"
	KeyModeRelative = "relative" // "{path/relative/to/root}_part{i}"
)

const defaultOllamaHost = "http://localhost:11434"

// Config holds all configuration for the application.
type Config struct {
	Indexer    IndexerConfig    `mapstructure:"indexer" json:"indexer"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval" json:"retrieval"`
	Heuristic  HeuristicConfig  `mapstructure:"heuristic" json:"heuristic"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding" json:"embedding"`
	Generation GenerationConfig `mapstructure:"generation" json:"generation"`
	Log        LogConfig        `mapstructure:"log" json:"log"`
}

// IndexerConfig controls which files are read and how they are cut.
type IndexerConfig struct {
	Root         string   `mapstructure:"root" json:"root" jsonschema:"description=Directory to index"`
	Extensions   []string `mapstructure:"extensions" json:"extensions" jsonschema:"description=File extensions to index"`
	IgnoreDirs   []string `mapstructure:"ignore_dirs" json:"ignore_dirs"`
	Markers      []string `mapstructure:"markers" json:"markers" jsonschema:"description=Literal strings that open a snippet"`
	KeepPreamble bool     `mapstructure:"keep_preamble" json:"keep_preamble" jsonschema:"description=Index the text before the first marker as its own snippet"`
	KeyMode      string   `mapstructure:"key_mode" json:"key_mode" jsonschema:"enum=name,enum=relative"`
	MaxFileBytes int64    `mapstructure:"max_file_bytes" json:"max_file_bytes"`
}

// RetrievalConfig selects the retriever.
type RetrievalConfig struct {
	Strategy string `mapstructure:"strategy" json:"strategy" jsonschema:"enum=heuristic,enum=embedding"`
	TopK     int    `mapstructure:"top_k" json:"top_k" jsonschema:"minimum=1"`
}

// HeuristicConfig holds the lexical score weights.
type HeuristicConfig struct {
	WordWeight      float64 `mapstructure:"word_weight" json:"word_weight"`
	SubstringWeight float64 `mapstructure:"substring_weight" json:"substring_weight"`
	SequenceWeight  float64 `mapstructure:"sequence_weight" json:"sequence_weight"`
	Threshold       float64 `mapstructure:"threshold" json:"threshold"`
}

// EmbeddingConfig holds embedding service configuration.
type EmbeddingConfig struct {
	Provider       string        `mapstructure:"provider" json:"provider" jsonschema:"enum=ollama,enum=openai"`
	Model          string        `mapstructure:"model" json:"model"`
	BaseURL        string        `mapstructure:"base_url" json:"base_url"`
	APIKey         string        `mapstructure:"api_key" json:"api_key"`
	BatchSize      int           `mapstructure:"batch_size" json:"batch_size"`
	QueryCacheSize int           `mapstructure:"query_cache_size" json:"query_cache_size"`
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout"`
}

// GenerationConfig holds chat service configuration.
type GenerationConfig struct {
	Provider  string        `mapstructure:"provider" json:"provider" jsonschema:"enum=ollama,enum=openai,enum=anthropic"`
	Model     string        `mapstructure:"model" json:"model"`
	BaseURL   string        `mapstructure:"base_url" json:"base_url"`
	APIKey    string        `mapstructure:"api_key" json:"api_key"`
	MaxTokens int           `mapstructure:"max_tokens" json:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `mapstructure:"format" json:"format" jsonschema:"enum=console,enum=json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Indexer: IndexerConfig{
			Root:         ".",
			Extensions:   []string{".py"},
			IgnoreDirs:   []string{".git", "__pycache__", ".venv", "venv", "node_modules"},
			Markers:      append([]string(nil), domain.DefaultMarkers...),
			KeepPreamble: false,
			KeyMode:      KeyModeName,
			MaxFileBytes: 10 * 1024 * 1024,
		},
		Retrieval: RetrievalConfig{
			Strategy: string(domain.StrategyHeuristic),
			TopK:     domain.DefaultTopK,
		},
		Heuristic: HeuristicConfig{
			WordWeight:      domain.DefaultHeuristicWeights.WordOverlap,
			SubstringWeight: domain.DefaultHeuristicWeights.SubstringCoverage,
			SequenceWeight:  domain.DefaultHeuristicWeights.Sequence,
			Threshold:       domain.DefaultScoreThreshold,
		},
		Embedding: EmbeddingConfig{
			Provider:       ProviderOllama,
			BatchSize:      domain.DefaultEmbeddingBatchSize,
			QueryCacheSize: 256,
		},
		Generation: GenerationConfig{
			Provider:  ProviderOllama,
			MaxTokens: 1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"root":          "indexer.root",
	"ext":           "indexer.extensions",
	"keep-preamble": "indexer.keep_preamble",
	"key-mode":      "indexer.key_mode",
	"strategy":      "retrieval.strategy",
	"top-k":         "retrieval.top_k",
	"embedder":      "embedding.provider",
	"embed-model":   "embedding.model",
	"generator":     "generation.provider",
	"model":         "generation.model",
	"log-level":     "log.level",
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML config file, CODEQA_* environment variables and changed flags.
// .env.local and .env are loaded into the environment first.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("codeqa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".codeqa"))
		}
	}

	v.SetEnvPrefix("CODEQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, domain.NewError(domain.Configuration, "bind flag "+name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, domain.NewPathError(domain.Configuration, "read config", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, domain.NewError(domain.Configuration, "decode config", err)
	}
	cfg.applyProviderDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("indexer.root", cfg.Indexer.Root)
	v.SetDefault("indexer.extensions", cfg.Indexer.Extensions)
	v.SetDefault("indexer.ignore_dirs", cfg.Indexer.IgnoreDirs)
	v.SetDefault("indexer.markers", cfg.Indexer.Markers)
	v.SetDefault("indexer.keep_preamble", cfg.Indexer.KeepPreamble)
	v.SetDefault("indexer.key_mode", cfg.Indexer.KeyMode)
	v.SetDefault("indexer.max_file_bytes", cfg.Indexer.MaxFileBytes)
	v.SetDefault("retrieval.strategy", cfg.Retrieval.Strategy)
	v.SetDefault("retrieval.top_k", cfg.Retrieval.TopK)
	v.SetDefault("heuristic.word_weight", cfg.Heuristic.WordWeight)
	v.SetDefault("heuristic.substring_weight", cfg.Heuristic.SubstringWeight)
	v.SetDefault("heuristic.sequence_weight", cfg.Heuristic.SequenceWeight)
	v.SetDefault("heuristic.threshold", cfg.Heuristic.Threshold)
	v.SetDefault("embedding.provider", cfg.Embedding.Provider)
	v.SetDefault("embedding.model", cfg.Embedding.Model)
	v.SetDefault("embedding.base_url", cfg.Embedding.BaseURL)
	v.SetDefault("embedding.api_key", cfg.Embedding.APIKey)
	v.SetDefault("embedding.batch_size", cfg.Embedding.BatchSize)
	v.SetDefault("embedding.query_cache_size", cfg.Embedding.QueryCacheSize)
	v.SetDefault("embedding.timeout", cfg.Embedding.Timeout)
	v.SetDefault("generation.provider", cfg.Generation.Provider)
	v.SetDefault("generation.model", cfg.Generation.Model)
	v.SetDefault("generation.base_url", cfg.Generation.BaseURL)
	v.SetDefault("generation.api_key", cfg.Generation.APIKey)
	v.SetDefault("generation.max_tokens", cfg.Generation.MaxTokens)
	v.SetDefault("generation.timeout", cfg.Generation.Timeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// applyProviderDefaults fills model names, hosts and API keys left empty
// with the values of the selected providers.
func (c *Config) applyProviderDefaults() {
	switch c.Embedding.Provider {
	case ProviderOllama:
		c.Embedding.Model = orDefault(c.Embedding.Model, "all-minilm")
		c.Embedding.BaseURL = orDefault(c.Embedding.BaseURL, defaultOllamaHost)
	case ProviderOpenAI:
		c.Embedding.Model = orDefault(c.Embedding.Model, "text-embedding-3-small")
		c.Embedding.APIKey = orDefault(c.Embedding.APIKey, os.Getenv("OPENAI_API_KEY"))
	}

	switch c.Generation.Provider {
	case ProviderOllama:
		c.Generation.Model = orDefault(c.Generation.Model, "llama3.1:latest")
		c.Generation.BaseURL = orDefault(c.Generation.BaseURL, defaultOllamaHost)
	case ProviderOpenAI:
		c.Generation.Model = orDefault(c.Generation.Model, "gpt-4o-mini")
		c.Generation.APIKey = orDefault(c.Generation.APIKey, os.Getenv("OPENAI_API_KEY"))
	case ProviderAnthropic:
		c.Generation.Model = orDefault(c.Generation.Model, "claude-sonnet-4-5")
		c.Generation.APIKey = orDefault(c.Generation.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Validate reports the first invalid setting as a Configuration error.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return domain.NewError(domain.Configuration, "validate config", fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Indexer.Root) == "" {
		return invalid("indexer.root is empty")
	}
	if len(c.Indexer.Extensions) == 0 {
		return invalid("indexer.extensions is empty")
	}
	if c.Indexer.KeyMode != KeyModeName && c.Indexer.KeyMode != KeyModeRelative {
		return invalid("unknown indexer.key_mode %q", c.Indexer.KeyMode)
	}
	if c.Indexer.MaxFileBytes <= 0 {
		return invalid("indexer.max_file_bytes must be positive")
	}
	if _, err := domain.ParseStrategy(c.Retrieval.Strategy); err != nil {
		return err
	}
	if c.Retrieval.TopK < 1 {
		return invalid("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK)
	}

	h := c.Heuristic
	if h.WordWeight < 0 || h.SubstringWeight < 0 || h.SequenceWeight < 0 {
		return invalid("heuristic weights must not be negative")
	}
	if sum := h.WordWeight + h.SubstringWeight + h.SequenceWeight; math.Abs(sum-1) > 1e-6 {
		return invalid("heuristic weights must sum to 1, got %g", sum)
	}
	if h.Threshold < 0 || h.Threshold >= 1 {
		return invalid("heuristic.threshold must be in [0,1), got %g", h.Threshold)
	}

	if c.Retrieval.Strategy == string(domain.StrategyEmbedding) {
		switch c.Embedding.Provider {
		case ProviderOllama, ProviderOpenAI:
		default:
			return invalid("unknown embedding.provider %q", c.Embedding.Provider)
		}
		if c.Embedding.Provider == ProviderOpenAI && c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
			return invalid("OPENAI_API_KEY is not set")
		}
	}
	if c.Embedding.BatchSize < 1 {
		return invalid("embedding.batch_size must be at least 1")
	}
	if c.Embedding.QueryCacheSize < 0 {
		return invalid("embedding.query_cache_size must not be negative")
	}

	switch c.Generation.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.Generation.APIKey == "" && c.Generation.BaseURL == "" {
			return invalid("OPENAI_API_KEY is not set")
		}
	case ProviderAnthropic:
		if c.Generation.APIKey == "" {
			return invalid("ANTHROPIC_API_KEY is not set")
		}
	default:
		return invalid("unknown generation.provider %q", c.Generation.Provider)
	}
	if c.Generation.MaxTokens < 1 {
		return invalid("generation.max_tokens must be at least 1")
	}
	return nil
}

// ExtractorOptions converts the indexer settings for the snippet extractor.
func (c *Config) ExtractorOptions() domain.ExtractorOptions {
	return domain.ExtractorOptions{
		Markers:      c.Indexer.Markers,
		KeepPreamble: c.Indexer.KeepPreamble,
	}
}

// HeuristicOptions converts the heuristic settings for the retriever.
func (c *Config) HeuristicOptions() domain.HeuristicOptions {
	return domain.HeuristicOptions{
		Weights: domain.HeuristicWeights{
			WordOverlap:       c.Heuristic.WordWeight,
			SubstringCoverage: c.Heuristic.SubstringWeight,
			Sequence:          c.Heuristic.SequenceWeight,
		},
		Threshold: c.Heuristic.Threshold,
	}
}

// Schema returns the JSON Schema of the config file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		FieldNameTag:              "mapstructure",
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "codeqa configuration"
	return json.MarshalIndent(schema, "", "  ")
}
