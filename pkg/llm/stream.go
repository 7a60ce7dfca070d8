package llm

// ContentType distinguishes reasoning output from the answer itself.
type ContentType string

const (
	// ContentTypeMessage is regular answer content.
	ContentTypeMessage ContentType = "message"

	// ContentTypeThinking is reasoning emitted inside <think>/<thinking> tags.
	ContentTypeThinking ContentType = "thinking"
)

// StreamChunk is one piece of a streamed completion.
type StreamChunk struct {
	Role     string
	Content  string
	Type     ContentType
	Finished bool
	Error    error
}

// IsError reports whether the chunk carries a stream error.
func (c *StreamChunk) IsError() bool {
	return c != nil && c.Error != nil
}

// IsThinking reports whether the chunk is reasoning content.
func (c *StreamChunk) IsThinking() bool {
	return c != nil && c.Type == ContentTypeThinking
}
