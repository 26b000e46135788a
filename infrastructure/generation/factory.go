// Package generation holds the chat backends that turn a grounded prompt
// into an answer.
package generation

import (
	"fmt"

	"codeqa/domain"
	"codeqa/infrastructure/config"
)

// NewGenerator builds the generator named by cfg.Provider.
func NewGenerator(cfg config.GenerationConfig) (domain.Generator, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(OllamaConfig{Host: cfg.BaseURL, Timeout: cfg.Timeout}), nil
	case config.ProviderOpenAI:
		g, err := NewOpenAIClient(OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, domain.NewError(domain.Configuration, "create generator", err)
		}
		return g, nil
	case config.ProviderAnthropic:
		g, err := NewAnthropicClient(AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, domain.NewError(domain.Configuration, "create generator", err)
		}
		return g, nil
	default:
		return nil, domain.NewError(domain.Configuration, "create generator",
			fmt.Errorf("unknown generation provider %q", cfg.Provider))
	}
}
