// Package types holds the message and turn value types shared by the LLM
// provider, the history store and the dialogue controller.
package types

// MessageRole identifies the speaker of a message.
type MessageRole string

const (
	// RoleSystem carries provider-level instructions.
	RoleSystem MessageRole = "system"

	// RoleUser is the person asking questions.
	RoleUser MessageRole = "user"

	// RoleAssistant is the model answering them.
	RoleAssistant MessageRole = "assistant"
)

// IsValid reports whether r is one of the known roles.
func (r MessageRole) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single entry of an LLM conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}

// ModelInfo describes the model a provider talks to.
type ModelInfo struct {
	Provider          string                 `json:"provider"`
	Name              string                 `json:"name"`
	SupportsStreaming bool                   `json:"supports_streaming"`
	MaxTokens         int                    `json:"max_tokens"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}
