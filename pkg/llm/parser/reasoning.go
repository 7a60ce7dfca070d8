// Package parser separates model reasoning from answer text in LLM streams.
package parser

import (
	"strings"

	"github.com/entrhq/medisimple/pkg/llm"
)

// DefaultReasoningTags are the tag names local and hosted reasoning models
// wrap their chain of thought in.
var DefaultReasoningTags = []string{"think", "thinking"}

// ReasoningParser splits streamed content into reasoning and answer chunks.
// It keeps state across chunks so tags that span chunk boundaries are handled.
type ReasoningParser struct {
	open  map[string]bool
	close map[string]bool

	buffer      strings.Builder
	tagBuffer   strings.Builder // text between a '<' and the next '>'
	inReasoning bool
	inTag       bool
}

// NewReasoningParser creates a parser that recognises the given tag names.
// With no names, DefaultReasoningTags is used.
func NewReasoningParser(tags ...string) *ReasoningParser {
	if len(tags) == 0 {
		tags = DefaultReasoningTags
	}
	p := &ReasoningParser{
		open:  make(map[string]bool, len(tags)),
		close: make(map[string]bool, len(tags)),
	}
	for _, tag := range tags {
		p.open["<"+tag+">"] = true
		p.close["</"+tag+">"] = true
	}
	return p
}

// Parse processes one content chunk and returns whatever reasoning and answer
// text it completes. Either return value may be nil.
func (p *ReasoningParser) Parse(content string) (reasoning, message *llm.StreamChunk) {
	for _, ch := range content {
		switch {
		case ch == '<':
			// A second '<' means the first one never opened a tag.
			if p.inTag {
				reasoning, message = p.merge(reasoning, message, p.chunk(p.takeTag()))
			}
			reasoning, message = p.merge(reasoning, message, p.chunk(p.takeBuffer()))
			p.inTag = true
			p.tagBuffer.WriteRune(ch)

		case ch == '>' && p.inTag:
			p.tagBuffer.WriteRune(ch)
			p.inTag = false
			tag := p.takeTag()
			lower := strings.ToLower(tag)
			switch {
			case p.open[lower]:
				p.inReasoning = true
			case p.close[lower]:
				p.inReasoning = false
			default:
				reasoning, message = p.merge(reasoning, message, p.chunk(tag))
			}

		case p.inTag:
			p.tagBuffer.WriteRune(ch)

		default:
			p.buffer.WriteRune(ch)
		}
	}

	return p.merge(reasoning, message, p.chunk(p.takeBuffer()))
}

// Flush returns buffered content that has not been emitted yet, including a
// dangling partial tag. Call it once the stream ends.
func (p *ReasoningParser) Flush() (reasoning, message *llm.StreamChunk) {
	if p.inTag {
		p.inTag = false
		reasoning, message = p.merge(reasoning, message, p.chunk(p.takeTag()))
	}
	return p.merge(reasoning, message, p.chunk(p.takeBuffer()))
}

func (p *ReasoningParser) takeBuffer() string {
	s := p.buffer.String()
	p.buffer.Reset()
	return s
}

func (p *ReasoningParser) takeTag() string {
	s := p.tagBuffer.String()
	p.tagBuffer.Reset()
	return s
}

func (p *ReasoningParser) chunk(text string) *llm.StreamChunk {
	if text == "" {
		return nil
	}
	if p.inReasoning {
		return &llm.StreamChunk{Content: text, Type: llm.ContentTypeThinking}
	}
	return &llm.StreamChunk{Content: text, Type: llm.ContentTypeMessage}
}

func (p *ReasoningParser) merge(reasoning, message, next *llm.StreamChunk) (*llm.StreamChunk, *llm.StreamChunk) {
	if next == nil {
		return reasoning, message
	}
	if next.Type == llm.ContentTypeThinking {
		if reasoning == nil {
			return next, message
		}
		reasoning.Content += next.Content
		return reasoning, message
	}
	if message == nil {
		return reasoning, next
	}
	message.Content += next.Content
	return reasoning, message
}

// StripReasoning removes every reasoning block from a complete response.
func StripReasoning(text string) string {
	p := NewReasoningParser()
	var out strings.Builder
	collect := func(_, message *llm.StreamChunk) {
		if message != nil {
			out.WriteString(message.Content)
		}
	}
	collect(p.Parse(text))
	collect(p.Flush())
	return out.String()
}
