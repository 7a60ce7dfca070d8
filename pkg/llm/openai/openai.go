// Package openai provides an OpenAI-compatible LLM provider.
//
// Any server that speaks the chat completions API works, including a local
// Ollama instance:
//
//	provider, err := openai.NewProvider("ollama",
//	    openai.WithBaseURL("http://localhost:11434/v1"),
//	    openai.WithModel("granite3.1-dense:8b"),
//	)
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/entrhq/medisimple/pkg/llm"
	"github.com/entrhq/medisimple/pkg/llm/parser"
	"github.com/entrhq/medisimple/pkg/types"
	"github.com/openai/openai-go"
	"github.com/pkg/errors"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "granite3.1-dense:8b"

	// DefaultRequestTimeout bounds a single completion request.
	DefaultRequestTimeout = 2 * time.Minute
)

// Provider implements llm.Provider for OpenAI-compatible APIs.
type Provider struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	temperature *float64
	modelInfo   *types.ModelInfo
}

var _ llm.Provider = (*Provider)(nil)

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithTemperature sets the sampling temperature sent with every request.
func WithTemperature(t float64) ProviderOption {
	return func(p *Provider) {
		p.temperature = &t
	}
}

// NewProvider creates a new provider with the given API key.
//
// If apiKey is empty, OPENAI_API_KEY is used. Local servers usually accept any
// non-empty key. If no base URL option is given, OPENAI_BASE_URL is checked.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		model:      DefaultModel,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
		baseURL:    DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = strings.TrimRight(envBaseURL, "/")
		}
	}

	p.modelInfo = &types.ModelInfo{
		Provider:          "openai",
		Name:              p.model,
		SupportsStreaming: true,
		MaxTokens:         8192,
		Metadata:          make(map[string]interface{}),
	}
	if p.baseURL != DefaultBaseURL {
		p.modelInfo.Metadata["base_url"] = p.baseURL
	}

	return p, nil
}

// StreamCompletion sends messages and streams back response chunks.
//
// Raw SSE handling is used instead of the SDK client so servers that add SSE
// comments or skip optional fields still work.
func (p *Provider) StreamCompletion(ctx context.Context, messages []*types.Message) (<-chan *llm.StreamChunk, error) {
	resp, err := p.sendStreamRequest(ctx, messages)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *llm.StreamChunk, 10)
	go p.processStreamResponse(ctx, resp, chunks)
	return chunks, nil
}

func (p *Provider) sendStreamRequest(ctx context.Context, messages []*types.Message) (*http.Response, error) {
	reqBody := map[string]interface{}{
		"model":    p.model,
		"messages": convertToOpenAIMessages(messages),
		"stream":   true,
	}
	if p.temperature != nil {
		reqBody["temperature"] = *p.temperature
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, errors.Errorf("API request failed with status %d (failed to read error body: %v)", resp.StatusCode, readErr)
		}
		return nil, errors.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

type sseChunk struct {
	Choices []struct {
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *Provider) processStreamResponse(ctx context.Context, resp *http.Response, chunks chan<- *llm.StreamChunk) {
	defer close(chunks)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	reasoning := parser.NewReasoningParser()
	role := ""

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			if p.flush(ctx, reasoning, role, chunks) {
				p.send(ctx, &llm.StreamChunk{Finished: true}, chunks)
			}
			return
		}

		var chunk sseChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil || len(chunk.Choices) == 0 {
			continue // malformed chunks are skipped
		}

		choice := chunk.Choices[0]
		if role == "" && choice.Delta.Role != "" {
			role = choice.Delta.Role
		}

		if choice.Delta.Content != "" {
			r, m := reasoning.Parse(choice.Delta.Content)
			if !p.sendParsed(ctx, r, m, role, chunks) {
				return
			}
		}

		if choice.FinishReason != nil && *choice.FinishReason == "stop" {
			if p.flush(ctx, reasoning, role, chunks) {
				p.send(ctx, &llm.StreamChunk{Role: role, Finished: true}, chunks)
			}
			return
		}
	}

	if !p.flush(ctx, reasoning, role, chunks) {
		return
	}
	if err := scanner.Err(); err != nil {
		p.send(ctx, &llm.StreamChunk{Error: errors.Wrap(err, "stream read error")}, chunks)
	}
}

func (p *Provider) flush(ctx context.Context, reasoning *parser.ReasoningParser, role string, chunks chan<- *llm.StreamChunk) bool {
	r, m := reasoning.Flush()
	return p.sendParsed(ctx, r, m, role, chunks)
}

func (p *Provider) sendParsed(ctx context.Context, reasoning, message *llm.StreamChunk, role string, chunks chan<- *llm.StreamChunk) bool {
	for _, c := range []*llm.StreamChunk{reasoning, message} {
		if c == nil {
			continue
		}
		c.Role = role
		if !p.send(ctx, c, chunks) {
			return false
		}
	}
	return true
}

func (p *Provider) send(ctx context.Context, chunk *llm.StreamChunk, chunks chan<- *llm.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		select {
		case chunks <- &llm.StreamChunk{Error: ctx.Err()}:
		default:
		}
		return false
	}
}

// Complete sends messages and returns the full answer. Reasoning content is
// dropped so callers only see the answer text.
func (p *Provider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	stream, err := p.StreamCompletion(ctx, messages)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	role := ""
	for chunk := range stream {
		if chunk.IsError() {
			return nil, chunk.Error
		}
		if chunk.Role != "" {
			role = chunk.Role
		}
		if !chunk.IsThinking() {
			content.WriteString(chunk.Content)
		}
	}

	if role == "" {
		role = string(types.RoleAssistant)
	}
	return &types.Message{Role: types.MessageRole(role), Content: content.String()}, nil
}

// GetModelInfo returns information about the model being used.
func (p *Provider) GetModelInfo() *types.ModelInfo {
	return p.modelInfo
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// GetBaseURL returns the base URL being used.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}

func convertToOpenAIMessages(messages []*types.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case types.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
