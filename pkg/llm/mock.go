package llm

import (
	"context"
	"sync"

	"github.com/entrhq/medisimple/pkg/types"
	"github.com/pkg/errors"
)

// MockProvider is a scripted Provider for tests. Each Complete call pops the
// next response; Respond, when set, takes precedence and sees the request.
type MockProvider struct {
	mu        sync.Mutex
	Responses []string
	Respond   func(messages []*types.Message) (string, error)
	Model     string

	calls [][]*types.Message
}

// NewMockProvider creates a mock that replies with responses in order.
func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{Responses: responses, Model: "mock"}
}

// Complete returns the next scripted response.
func (m *MockProvider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, messages)

	if m.Respond != nil {
		text, err := m.Respond(messages)
		if err != nil {
			return nil, err
		}
		return types.NewAssistantMessage(text), nil
	}

	if len(m.Responses) == 0 {
		return nil, errors.Errorf("mock provider: no response scripted for call %d", len(m.calls))
	}
	text := m.Responses[0]
	m.Responses = m.Responses[1:]
	return types.NewAssistantMessage(text), nil
}

// StreamCompletion emits the next scripted response as a single chunk.
func (m *MockProvider) StreamCompletion(ctx context.Context, messages []*types.Message) (<-chan *StreamChunk, error) {
	msg, err := m.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	ch := make(chan *StreamChunk, 2)
	ch <- &StreamChunk{Role: string(types.RoleAssistant), Content: msg.Content, Type: ContentTypeMessage}
	ch <- &StreamChunk{Finished: true}
	close(ch)
	return ch, nil
}

// GetModelInfo returns static mock model info.
func (m *MockProvider) GetModelInfo() *types.ModelInfo {
	return &types.ModelInfo{Provider: "mock", Name: m.GetModel()}
}

// GetModel returns the configured model name.
func (m *MockProvider) GetModel() string {
	if m.Model == "" {
		return "mock"
	}
	return m.Model
}

// Calls returns the message lists received so far.
func (m *MockProvider) Calls() [][]*types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*types.Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many completions were requested.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
