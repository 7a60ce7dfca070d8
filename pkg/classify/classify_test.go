package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/entrhq/medisimple/pkg/llm"
	"github.com/entrhq/medisimple/pkg/prompts"
	"github.com/entrhq/medisimple/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"hi", true},
		{"Hello!", true},
		{"HEY?", true},
		{"  good morning...  ", true},
		{"what's up?!", true},
		{"Whats Up", true},
		{"yo.", true},
		{"hi there", false},
		{"hello, what is asthma?", false},
		{"", false},
		{"hey!! doctor", false},
		{"¡hola!", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, IsGreeting(tt.query))
		})
	}
}

func TestParseTagged(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		tag    string
		want   string
		wantOK bool
	}{
		{"plain", "CONFIRMED: asthma", TagConfirmed, "asthma", true},
		{"surrounding whitespace", "\n  CONFIRMED:Type 2 diabetes \n", TagConfirmed, "Type 2 diabetes", true},
		{"reasoning stripped", "<think>they said yes</think>CONFIRMED: flu", TagConfirmed, "flu", true},
		{"negative", "NOT_CONFIRMED", TagConfirmed, "", false},
		{"tag not at start", "I think CONFIRMED: flu", TagConfirmed, "", false},
		{"lowercase tag", "typo: did you mean", TagTypo, "", false},
		{"typo", "TYPO: Did you mean: diabetes?", TagTypo, "Did you mean: diabetes?", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTagged(tt.reply, tt.tag)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlag(t *testing.T) {
	assert.True(t, ParseFlag("FOLLOW_UP", TagFollowUp))
	assert.True(t, ParseFlag("  FOLLOW_UP\n", TagFollowUp))
	assert.False(t, ParseFlag("NEW_TOPIC", TagFollowUp))
	assert.False(t, ParseFlag("FOLLOW_UP.", TagFollowUp))
	assert.False(t, ParseFlag("", TagFollowUp))
}

func TestPendingSuggestion(t *testing.T) {
	turns := []types.Turn{
		{Role: types.RoleUser, Content: "diabetis"},
		{Role: types.RoleAssistant, Content: "Did you mean: diabetes?"},
		{Role: types.RoleUser, Content: "yes"},
	}
	last, ok := PendingSuggestion(turns)
	require.True(t, ok)
	assert.Equal(t, "Did you mean: diabetes?", last.Content)

	_, ok = PendingSuggestion(append(turns, types.Turn{Role: types.RoleAssistant, Content: "Diabetes is..."}))
	assert.False(t, ok, "only the most recent assistant turn counts")

	_, ok = PendingSuggestion(nil)
	assert.False(t, ok)
}

func TestRenderTurns(t *testing.T) {
	turns := []types.Turn{
		{Role: types.RoleUser, Content: "what is flu"},
		{Role: types.RoleAssistant, Content: "Flu is a virus."},
	}
	assert.Equal(t, "user: what is flu\nassistant: Flu is a virus.", RenderTurns(turns, false))
	assert.Equal(t, "User: what is flu\nAssistant: Flu is a virus.", RenderTurns(turns, true))
	assert.Equal(t, "", RenderTurns(nil, true))
}

func newClassifier(responses ...string) (*Classifier, *llm.MockProvider) {
	provider := llm.NewMockProvider(responses...)
	return New(provider, prompts.New(zerolog.Nop()), zerolog.Nop()), provider
}

func TestClassifierConfirmation(t *testing.T) {
	c, provider := newClassifier("CONFIRMED: diabetes", "NOT_CONFIRMED", "CONFIRMED:")

	term, ok, err := c.Confirmation(context.Background(), "Did you mean: diabetes?", "yes")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "diabetes", term)

	prompt := provider.Calls()[0][0].Content
	assert.Contains(t, prompt, "Did you mean: diabetes?")
	assert.Contains(t, prompt, "yes")

	_, ok, err = c.Confirmation(context.Background(), "Did you mean: diabetes?", "no, asthma")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Confirmation(context.Background(), "Did you mean: diabetes?", "yes")
	require.NoError(t, err)
	assert.False(t, ok, "a tag without a term is not a confirmation")
}

func TestClassifierFollowUp(t *testing.T) {
	c, provider := newClassifier("FOLLOW_UP", "NEW_TOPIC")
	recent := []types.Turn{
		{Role: types.RoleUser, Content: "what is flu"},
		{Role: types.RoleAssistant, Content: "Flu is a virus."},
	}

	followUp, err := c.FollowUp(context.Background(), recent, "explain it like I'm 5")
	require.NoError(t, err)
	assert.True(t, followUp)
	assert.Contains(t, provider.Calls()[0][0].Content, "user: what is flu\nassistant: Flu is a virus.")

	followUp, err = c.FollowUp(context.Background(), recent, "what is measles")
	require.NoError(t, err)
	assert.False(t, followUp)
}

func TestClassifierTypo(t *testing.T) {
	c, _ := newClassifier("TYPO: Did you mean: pneumonia?", "OK")

	clarification, ok, err := c.Typo(context.Background(), "neumonia")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Did you mean: pneumonia?", clarification)

	_, ok, err = c.Typo(context.Background(), "pneumonia")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassifierProviderError(t *testing.T) {
	provider := &llm.MockProvider{Respond: func([]*types.Message) (string, error) {
		return "", errors.New("connection refused")
	}}
	c := New(provider, prompts.New(zerolog.Nop()), zerolog.Nop())

	_, _, err := c.Typo(context.Background(), "x")
	assert.ErrorContains(t, err, "typo stage")
	_, err = c.FollowUp(context.Background(), nil, "x")
	assert.ErrorContains(t, err, "follow-up stage")
	_, _, err = c.Confirmation(context.Background(), "s", "x")
	assert.ErrorContains(t, err, "confirmation stage")
}
