package embedding

import (
	"fmt"

	"codeqa/domain"
	"codeqa/infrastructure/config"
)

// NewEmbeddingClient builds the embedding backend named by cfg.Provider,
// wrapped in a query cache when cfg.QueryCacheSize is positive.
func NewEmbeddingClient(cfg config.EmbeddingConfig) (domain.EmbeddingClient, error) {
	var client domain.EmbeddingClient
	switch cfg.Provider {
	case config.ProviderOllama:
		client = NewOllamaEmbeddingClient(OllamaConfig{
			Host:    cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	case config.ProviderOpenAI:
		c, err := NewOpenAIEmbeddingClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, domain.NewError(domain.Configuration, "create embedder", err)
		}
		client = c
	default:
		return nil, domain.NewError(domain.Configuration, "create embedder",
			fmt.Errorf("unknown embedding provider %q", cfg.Provider))
	}

	if cfg.QueryCacheSize <= 0 {
		return client, nil
	}
	cached, err := NewCachedClient(client, cfg.QueryCacheSize)
	if err != nil {
		return nil, domain.NewError(domain.Configuration, "create embedder", err)
	}
	return cached, nil
}
