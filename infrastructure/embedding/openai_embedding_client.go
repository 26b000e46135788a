package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"codeqa/domain"
)

// OpenAIConfig configures an OpenAIEmbeddingClient.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // Optional, for OpenAI-compatible servers
	Model   string // e.g. text-embedding-3-small
	Timeout time.Duration
}

// OpenAIEmbeddingClient implements the domain.EmbeddingClient interface using the OpenAI API.
type OpenAIEmbeddingClient struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbeddingClient creates a new OpenAIEmbeddingClient.
func NewOpenAIEmbeddingClient(cfg OpenAIConfig) (*OpenAIEmbeddingClient, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAIEmbeddingClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(cfg.Model),
	}, nil
}

// GenerateEmbeddings generates embeddings for the given texts using the configured model.
// The response is reordered by index so the result matches the input order.
func (c *OpenAIEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, domain.NewError(domain.EmbeddingBackend, "openai embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.NewError(domain.EmbeddingBackend, "openai embeddings",
			fmt.Errorf("requested %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	embeddings := make([]domain.Embedding, len(data))
	for i, d := range data {
		embeddings[i] = domain.Embedding(d.Embedding)
	}
	return embeddings, nil
}
