package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"codeqa/domain"
)

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// AnthropicClient is a wrapper around the Anthropic API client.
// It implements domain.Generator on top of the Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	maxTokens int64
}

// NewAnthropicClient creates a new Anthropic client.
// It returns an error if no API key is configured.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicClient{
		client:    &client,
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

// Complete sends the conversation to the Anthropic API and returns the text
// of the reply. System messages are sent as the system prompt.
func (a *AnthropicClient) Complete(ctx context.Context, model string, messages []domain.Message) (domain.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: a.maxTokens,
	}
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case domain.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return domain.Message{}, domain.NewError(domain.Generation, "anthropic messages", err)
	}

	var text strings.Builder
	for _, content := range message.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}
	if text.Len() == 0 {
		return domain.Message{}, domain.NewError(domain.Generation, "anthropic messages",
			fmt.Errorf("reply has no text content (stop reason %q)", message.StopReason))
	}

	return domain.Message{Role: domain.RoleAssistant, Content: text.String()}, nil
}
