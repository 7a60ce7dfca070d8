package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/medisimple/pkg/llm"
	"github.com/entrhq/medisimple/pkg/prompts"
	"github.com/entrhq/medisimple/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DisambiguationMarker in an assistant turn means the assistant asked the
// user to confirm a suggested term.
const DisambiguationMarker = "Did you mean:"

// Classifier runs the model-backed stages. Each stage sends one prompt and
// parses the reply; an unexpected reply is the negative verdict.
type Classifier struct {
	provider llm.Provider
	prompts  *prompts.Registry
	log      zerolog.Logger
}

// New returns a classifier.
func New(provider llm.Provider, registry *prompts.Registry, log zerolog.Logger) *Classifier {
	return &Classifier{provider: provider, prompts: registry, log: log}
}

// PendingSuggestion returns the last assistant turn if it offered a
// suggestion to confirm.
func PendingSuggestion(recent []types.Turn) (types.Turn, bool) {
	last, ok := types.LastAssistant(recent)
	if !ok || !strings.Contains(last.Content, DisambiguationMarker) {
		return types.Turn{}, false
	}
	return last, true
}

// Confirmation asks whether query confirms suggestion and returns the
// confirmed term.
func (c *Classifier) Confirmation(ctx context.Context, suggestion, query string) (string, bool, error) {
	reply, err := c.ask(ctx, prompts.ConfirmationDetection, prompts.Vars{
		"suggestion": suggestion,
		"query":      query,
	})
	if err != nil {
		return "", false, errors.Wrap(err, "confirmation stage")
	}

	term, ok := ParseTagged(reply, TagConfirmed)
	if ok && term == "" {
		ok = false
	}
	c.log.Debug().Bool("confirmed", ok).Str("term", term).Msg("confirmation verdict")
	return term, ok, nil
}

// FollowUp asks whether query continues the conversation in recent.
func (c *Classifier) FollowUp(ctx context.Context, recent []types.Turn, query string) (bool, error) {
	reply, err := c.ask(ctx, prompts.FollowUpDetection, prompts.Vars{
		"history": RenderTurns(recent, false),
		"query":   query,
	})
	if err != nil {
		return false, errors.Wrap(err, "follow-up stage")
	}

	followUp := ParseFlag(reply, TagFollowUp)
	c.log.Debug().Bool("follow_up", followUp).Msg("follow-up verdict")
	return followUp, nil
}

// Typo asks whether query is misspelled or unclear and returns the
// clarification to show the user.
func (c *Classifier) Typo(ctx context.Context, query string) (string, bool, error) {
	reply, err := c.ask(ctx, prompts.TypoDetection, prompts.Vars{"query": query})
	if err != nil {
		return "", false, errors.Wrap(err, "typo stage")
	}

	clarification, ok := ParseTagged(reply, TagTypo)
	c.log.Debug().Bool("typo", ok).Msg("typo verdict")
	return clarification, ok, nil
}

func (c *Classifier) ask(ctx context.Context, name string, vars prompts.Vars) (string, error) {
	c.log.Debug().Str("prompt", name).Str("version", c.prompts.Version(name)).Msg("classifying")
	return llm.Generate(ctx, c.provider, c.prompts.Get(name, vars))
}

// RenderTurns formats turns as "role: content" lines. With capitalize the
// role's first letter is upper-cased.
func RenderTurns(turns []types.Turn, capitalize bool) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		role := string(t.Role)
		if capitalize && role != "" {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, t.Content))
	}
	return strings.Join(lines, "\n")
}
