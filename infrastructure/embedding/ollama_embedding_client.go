package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codeqa/domain"
)

// OllamaConfig configures an OllamaEmbeddingClient.
type OllamaConfig struct {
	Host    string // e.g. http://localhost:11434
	Model   string // e.g. all-minilm
	Timeout time.Duration
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaEmbeddingClient calls the /api/embed endpoint of an Ollama server,
// which embeds a whole batch in one request.
type OllamaEmbeddingClient struct {
	host       string
	model      string
	httpClient *http.Client
}

// NewOllamaEmbeddingClient creates a new OllamaEmbeddingClient.
func NewOllamaEmbeddingClient(cfg OllamaConfig) *OllamaEmbeddingClient {
	return &OllamaEmbeddingClient{
		host:       strings.TrimRight(cfg.Host, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// GenerateEmbeddings implements domain.EmbeddingClient.
func (c *OllamaEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, domain.NewError(domain.EmbeddingBackend, "ollama embed", fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewError(domain.EmbeddingBackend, "ollama embed", fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewError(domain.EmbeddingBackend, "ollama embed", fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, domain.NewError(domain.EmbeddingBackend, "ollama embed",
			fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes))))
	}

	var embResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, domain.NewError(domain.EmbeddingBackend, "ollama embed", fmt.Errorf("failed to decode response: %w", err))
	}
	if len(embResp.Embeddings) != len(texts) {
		return nil, domain.NewError(domain.EmbeddingBackend, "ollama embed",
			fmt.Errorf("requested %d embeddings, got %d", len(texts), len(embResp.Embeddings)))
	}

	embeddings := make([]domain.Embedding, len(embResp.Embeddings))
	for i, e := range embResp.Embeddings {
		embeddings[i] = domain.Embedding(e)
	}
	return embeddings, nil
}
