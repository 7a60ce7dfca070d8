// Package classify holds the decision stages that route a chat turn:
// confirmation, follow-up, greeting and typo detection.
package classify

import (
	"strings"

	"github.com/entrhq/medisimple/pkg/llm/parser"
)

// Tags the model is asked to reply with.
const (
	TagConfirmed = "CONFIRMED:"
	TagTypo      = "TYPO:"
	TagFollowUp  = "FOLLOW_UP"
)

// normalize strips reasoning blocks and surrounding whitespace from a reply.
func normalize(reply string) string {
	return strings.TrimSpace(parser.StripReasoning(reply))
}

// ParseTagged reports whether reply starts with tag and returns the trimmed
// text after it. Any other reply is the negative case.
func ParseTagged(reply, tag string) (string, bool) {
	reply = normalize(reply)
	if !strings.HasPrefix(reply, tag) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(reply, tag)), true
}

// ParseFlag reports whether reply is exactly flag.
func ParseFlag(reply, flag string) bool {
	return normalize(reply) == flag
}
