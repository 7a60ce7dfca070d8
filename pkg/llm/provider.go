// Package llm provides the abstraction the dialogue pipeline uses to talk to
// a language model.
//
// Example usage:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithBaseURL("http://localhost:11434/v1"),
//	    openai.WithModel("granite3.1-dense:8b"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reply, err := provider.Complete(ctx, []*types.Message{
//	    types.NewUserMessage("What is diabetes?"),
//	})
package llm

import (
	"context"

	"github.com/entrhq/medisimple/pkg/types"
)

// Provider defines the interface for LLM integrations.
//
// The core treats a provider as a black box: prompt messages in, text out.
// Classification stages depend on the output following loose prefix
// conventions, but a provider never validates them.
type Provider interface {
	// StreamCompletion sends messages to the LLM and streams back response chunks.
	//
	// The channel is closed when streaming completes or an error occurs.
	// Stream-time errors are sent as StreamChunk instances with Error set.
	StreamCompletion(ctx context.Context, messages []*types.Message) (<-chan *StreamChunk, error)

	// Complete sends messages to the LLM and returns the full response.
	// This is the single blocking call the dialogue pipeline uses.
	Complete(ctx context.Context, messages []*types.Message) (*types.Message, error)

	// GetModelInfo returns information about the model being used.
	GetModelInfo() *types.ModelInfo

	// GetModel returns the model name being used.
	GetModel() string
}

// Generate is a convenience wrapper that sends a single user prompt and
// returns the reply text.
func Generate(ctx context.Context, p Provider, prompt string) (string, error) {
	msg, err := p.Complete(ctx, []*types.Message{types.NewUserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}
