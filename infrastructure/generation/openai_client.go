package generation

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"codeqa/domain"
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string // Optional, for OpenAI-compatible servers
	MaxTokens int
	Timeout   time.Duration
}

// OpenAIClient implements domain.Generator with the chat completions API.
type OpenAIClient struct {
	client    *openai.Client
	maxTokens int
}

// NewOpenAIClient creates a new OpenAIClient.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
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

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientCfg),
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Complete implements domain.Generator.
func (c *OpenAIClient) Complete(ctx context.Context, model string, messages []domain.Message) (domain.Message, error) {
	req := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Message{}, domain.NewError(domain.Generation, "openai chat", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Message{}, domain.NewError(domain.Generation, "openai chat", errors.New("reply has no choices"))
	}

	return domain.Message{Role: domain.RoleAssistant, Content: resp.Choices[0].Message.Content}, nil
}
