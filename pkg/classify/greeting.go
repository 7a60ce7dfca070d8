package classify

import "strings"

// GreetingReply is the fixed answer to a greeting.
const GreetingReply = "Hello! I'm **MediSimple**, your friendly medical information assistant.\n\n" +
	"I can help you understand medical conditions, symptoms, medications, and health " +
	"topics in plain, simple language. Just ask me anything — like *What is diabetes?* " +
	"or *How does the heart work?*\n\n" +
	"What would you like to know about today?"

// greetings is the closed vocabulary IsGreeting matches against.
var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "hiya": {}, "howdy": {}, "greetings": {},
	"sup": {}, "whats up": {}, "what's up": {},
	"good morning": {}, "good afternoon": {}, "good evening": {}, "good day": {},
	"morning": {}, "afternoon": {}, "evening": {},
	"yo": {}, "helo": {}, "hii": {}, "hiii": {}, "heya": {},
}

// greetingTrim is stripped from both ends of a query before matching.
const greetingTrim = "! .,?"

// NormalizeGreeting lower-cases q and trims punctuation and spaces.
func NormalizeGreeting(q string) string {
	return strings.Trim(strings.ToLower(q), greetingTrim)
}

// IsGreeting reports whether q is a bare greeting.
func IsGreeting(q string) bool {
	_, ok := greetings[NormalizeGreeting(q)]
	return ok
}
