package retrieval

import (
	"strings"

	"github.com/entrhq/medisimple/pkg/classify"
	"github.com/entrhq/medisimple/pkg/types"
)

// ArticleContext wraps at most limit characters of content as the reference
// article block.
func ArticleContext(content string, limit int) string {
	return "Wikipedia article:\n" + Truncate(content, limit) + "\n\n"
}

// ConversationContext renders turns as the previous-conversation block used
// in place of an article for follow-up questions.
func ConversationContext(turns []types.Turn) string {
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	if len(turns) > 0 {
		b.WriteString(classify.RenderTurns(turns, true))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// Truncate returns the first limit characters of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// RuneLen returns the number of characters in s.
func RuneLen(s string) int {
	return len([]rune(s))
}
