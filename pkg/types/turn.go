package types

import "time"

// Turn is one persisted message of a session's history. Turns are immutable
// once written; Sequence orders them within a session.
type Turn struct {
	SessionID string      `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Sequence  int64       `json:"sequence"`
	CreatedAt time.Time   `json:"timestamp"`
}

// Message converts the turn into an LLM message, mapping anything that is not
// a user turn onto the assistant side of the two-party schema.
func (t Turn) Message() *Message {
	if t.Role == RoleUser {
		return NewUserMessage(t.Content)
	}
	return NewAssistantMessage(t.Content)
}

// LastAssistant returns the most recent assistant turn in turns.
func LastAssistant(turns []Turn) (Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleAssistant {
			return turns[i], true
		}
	}
	return Turn{}, false
}

// Tail returns at most the last n turns, preserving order.
func Tail(turns []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
