package generation

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

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	Host    string // e.g. http://localhost:11434
	Timeout time.Duration
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

type chatResponse struct {
	Model   string         `json:"model"`
	Message domain.Message `json:"message"`
	Done    bool           `json:"done"`
	Error   string         `json:"error,omitempty"`
}

// OllamaClient talks to the /api/chat endpoint of an Ollama server.
type OllamaClient struct {
	host       string
	httpClient *http.Client
}

// NewOllamaClient creates a new Ollama chat client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	return &OllamaClient{
		host:       strings.TrimRight(cfg.Host, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Complete sends a non-streaming chat request and returns the reply.
func (c *OllamaClient) Complete(ctx context.Context, model string, messages []domain.Message) (domain.Message, error) {
	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, Stream: false})
	if err != nil {
		return domain.Message{}, c.fail(fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, c.fail(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Message{}, c.fail(fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return domain.Message{}, c.fail(fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes))))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return domain.Message{}, c.fail(fmt.Errorf("failed to decode response: %w", err))
	}
	if chatResp.Error != "" {
		return domain.Message{}, c.fail(fmt.Errorf("ollama: %s", chatResp.Error))
	}

	reply := chatResp.Message
	if reply.Role == "" {
		reply.Role = domain.RoleAssistant
	}
	return reply, nil
}

func (c *OllamaClient) fail(err error) error {
	return domain.NewError(domain.Generation, "ollama chat", err)
}
