package domain

import "context"

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn exchanged with the generator.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator is the external text-generation service.
type Generator interface {
	// Complete sends messages to the model identified by model and returns
	// the assistant reply. Failures are reported as Generation errors.
	Complete(ctx context.Context, model string, messages []Message) (Message, error)
}
