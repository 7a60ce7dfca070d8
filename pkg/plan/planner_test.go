package plan

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/entrhq/medisimple/pkg/llm"
	"github.com/entrhq/medisimple/pkg/prompts"
	"github.com/entrhq/medisimple/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlannerPlan(t *testing.T) {
	provider := llm.NewMockProvider(`[{"type":"click","selector":"#go"}]`)
	planner := NewPlanner(provider, prompts.New(zerolog.Nop()), zerolog.Nop())

	text, err := planner.Plan(context.Background(), `[{"tag":"BUTTON","id":"go"}]`, "press the go button")
	require.NoError(t, err)
	assert.Equal(t, `[{"type":"click","selector":"#go"}]`, text)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, types.RoleUser, calls[0][0].Role)
	assert.Contains(t, calls[0][0].Content, "press the go button")
	assert.Contains(t, calls[0][0].Content, `"id":"go"`)
}

func TestPlannerPlanForElements(t *testing.T) {
	provider := llm.NewMockProvider("[]")
	planner := NewPlanner(provider, prompts.New(zerolog.Nop()), zerolog.Nop())

	_, err := planner.PlanForElements(context.Background(),
		[]browser.Element{{Index: 1, Tag: "INPUT", Name: "search"}}, "search for flu")
	require.NoError(t, err)
	assert.Contains(t, provider.Calls()[0][0].Content, `"name":"search"`)
}

func TestPlannerError(t *testing.T) {
	provider := &llm.MockProvider{Respond: func([]*types.Message) (string, error) {
		return "", errors.New("model offline")
	}}
	planner := NewPlanner(provider, prompts.New(zerolog.Nop()), zerolog.Nop())

	_, err := planner.Plan(context.Background(), "[]", "anything")
	assert.ErrorContains(t, err, "model offline")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 10, want: "short"},
		{in: "exactly", n: 7, want: "exactly"},
		{in: "abcdef", n: 3, want: "abc..."},
		{in: "fièvre élevée", n: 3, want: "fiè..."},
		{in: "日本語テキスト", n: 2, want: "日本..."},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
