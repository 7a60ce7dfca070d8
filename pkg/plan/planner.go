package plan

import (
	"context"
	"encoding/json"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/entrhq/medisimple/pkg/llm"
	"github.com/entrhq/medisimple/pkg/prompts"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Planner asks the model for an action plan.
type Planner struct {
	provider llm.Provider
	prompts  *prompts.Registry
	log      zerolog.Logger
}

// NewPlanner returns a planner.
func NewPlanner(provider llm.Provider, registry *prompts.Registry, log zerolog.Logger) *Planner {
	return &Planner{provider: provider, prompts: registry, log: log}
}

// Plan returns the model's raw plan text for instruction on a page described
// by dom. The text is not validated; Executor.Execute extracts the steps.
func (p *Planner) Plan(ctx context.Context, dom, instruction string) (string, error) {
	p.log.Info().Str("instruction", instruction).Msg("planning")

	prompt := p.prompts.Get(prompts.ActionPlanning, prompts.Vars{
		"dom":         dom,
		"instruction": instruction,
	})
	text, err := llm.Generate(ctx, p.provider, prompt)
	if err != nil {
		return "", errors.Wrap(err, "plan generation")
	}

	p.log.Debug().Str("plan", truncate(text, 120)).Msg("plan generated")
	return text, nil
}

// PlanForElements encodes elements as the page description and plans.
func (p *Planner) PlanForElements(ctx context.Context, elements []browser.Element, instruction string) (string, error) {
	dom, err := json.Marshal(elements)
	if err != nil {
		return "", errors.Wrap(err, "encode elements")
	}
	return p.Plan(ctx, string(dom), instruction)
}

// truncate shortens s to n characters for log lines.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}
