// Package tokens counts prompt tokens for logging and budgeting.
package tokens

import (
	"github.com/entrhq/medisimple/pkg/types"
	"github.com/pkoukk/tiktoken-go"
)

const (
	encodingName = "cl100k_base"

	// charsPerToken is the estimate used when no encoder is available.
	charsPerToken = 4

	// Chat framing overhead per message and per reply, as counted by the
	// chat completions API.
	tokensPerMessage = 4
	tokensPerReply   = 3
)

// Tokenizer counts tokens with a BPE encoder, or estimates them when the
// encoder could not be loaded.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New loads the cl100k_base encoder. When loading fails (the encoder data is
// fetched on first use) the returned Tokenizer still works in estimate mode
// and the error is returned for logging.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return &Tokenizer{}, err
	}
	return &Tokenizer{enc: enc}, nil
}

// Estimated reports whether counts are character-based estimates.
func (t *Tokenizer) Estimated() bool {
	return t == nil || t.enc == nil
}

// CountTokens returns the token count of text.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if t.Estimated() {
		return (len([]rune(text)) + charsPerToken - 1) / charsPerToken
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessagesTokens returns the token count of a chat request including
// per-message framing.
func (t *Tokenizer) CountMessagesTokens(messages []*types.Message) int {
	if len(messages) == 0 {
		return 0
	}
	total := tokensPerReply
	for _, m := range messages {
		if m == nil {
			continue
		}
		total += tokensPerMessage + t.CountTokens(string(m.Role)) + t.CountTokens(m.Content)
	}
	return total
}
