package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrNoActivePage is returned when a plan is run before any page was opened.
var ErrNoActivePage = errors.New("no browser connected")

const (
	DefaultStepTimeout = 5 * time.Second

	// DefaultSettle is the pause after a fill or click.
	DefaultSettle = 300 * time.Millisecond

	// DefaultPause is the length of a wait step without a selector.
	DefaultPause = 800 * time.Millisecond
)

// PageSource yields the active page.
type PageSource interface {
	Current() (browser.Page, bool)
}

// Executor runs plans step by step against the active page.
//
// Steps run sequentially. A step that times out or fails is recorded and the
// next step runs anyway, so a plan whose every step failed still returns
// results and a nil error. Only a missing page or an unreadable plan fails
// the whole call. Steps not started when ctx is cancelled are reported as
// skipped.
type Executor struct {
	pages       PageSource
	stepTimeout time.Duration
	settle      time.Duration
	pause       time.Duration
	log         zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithStepTimeout sets the deadline of each page operation.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.stepTimeout = d
		}
	}
}

// WithDelays sets the post-action settle time and the bare wait pause.
func WithDelays(settle, pause time.Duration) Option {
	return func(e *Executor) {
		e.settle = settle
		e.pause = pause
	}
}

// NewExecutor returns an executor using pages.
func NewExecutor(pages PageSource, log zerolog.Logger, opts ...Option) *Executor {
	e := &Executor{
		pages:       pages,
		stepTimeout: DefaultStepTimeout,
		settle:      DefaultSettle,
		pause:       DefaultPause,
		log:         log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute parses the plan embedded in text and runs it.
func (e *Executor) Execute(ctx context.Context, text string) ([]StepResult, error) {
	page, ok := e.pages.Current()
	if !ok {
		return nil, ErrNoActivePage
	}

	steps, err := Parse(text)
	if err != nil {
		e.log.Error().Err(err).Msg("plan parse failed")
		return nil, err
	}
	return e.run(ctx, page, steps), nil
}

// Run runs already parsed steps.
func (e *Executor) Run(ctx context.Context, steps []ActionStep) ([]StepResult, error) {
	page, ok := e.pages.Current()
	if !ok {
		return nil, ErrNoActivePage
	}
	return e.run(ctx, page, steps), nil
}

func (e *Executor) run(ctx context.Context, page browser.Page, steps []ActionStep) []StepResult {
	results := make([]StepResult, 0, len(steps))
	for i, step := range steps {
		e.log.Info().
			Int("step", i+1).
			Int("of", len(steps)).
			Str("type", string(step.Type)).
			Str("selector", step.Selector).
			Msg("executing step")

		var r StepResult
		if ctx.Err() != nil {
			r = StepResult{Outcome: OutcomeSkipped, Message: fmt.Sprintf("Skipped %s '%s': %v", step.Type, step.Selector, ctx.Err())}
		} else {
			r = e.step(page, step)
		}
		r.Index = i
		r.Type = string(step.Type)
		results = append(results, r)
	}

	e.log.Info().Int("steps", len(results)).Interface("outcomes", Summary(results)).Msg("execution complete")
	return results
}

func (e *Executor) step(page browser.Page, s ActionStep) (r StepResult) {
	defer func() {
		if p := recover(); p != nil {
			e.log.Error().Interface("panic", p).Str("type", string(s.Type)).Msg("step panicked")
			r = StepResult{Outcome: OutcomeError, Message: fmt.Sprintf("Error on %s '%s': %v", s.Type, s.Selector, p)}
		}
	}()

	switch s.Type {
	case StepFill, StepClick, StepPress, StepWait:
	default:
		return StepResult{Outcome: OutcomeUnknown, Message: fmt.Sprintf("Unknown action type: '%s'", s.Type)}
	}
	if err := s.Err(); err != nil {
		return StepResult{Outcome: OutcomeError, Message: fmt.Sprintf("Error on %s '%s': %v", s.Type, s.Selector, err)}
	}
	if s.Type != StepWait && s.Selector == "" {
		return StepResult{Outcome: OutcomeSkipped, Message: fmt.Sprintf("Skipped %s: selector is required", s.Type)}
	}

	msg, err := e.dispatch(page, s)
	switch {
	case err == nil:
		return StepResult{Outcome: OutcomeOK, Message: msg}
	case browser.IsTimeout(err):
		return StepResult{Outcome: OutcomeTimeout, Message: fmt.Sprintf("Timeout on %s '%s'", s.Type, s.Selector)}
	default:
		return StepResult{Outcome: OutcomeError, Message: fmt.Sprintf("Error on %s '%s': %v", s.Type, s.Selector, err)}
	}
}

func (e *Executor) dispatch(page browser.Page, s ActionStep) (string, error) {
	switch s.Type {
	case StepFill:
		if err := page.Fill(s.Selector, s.Value, e.stepTimeout); err != nil {
			return "", err
		}
		page.Sleep(e.settle)
		return fmt.Sprintf("Filled '%s' with '%s'", s.Selector, s.Value), nil

	case StepClick:
		if err := page.Click(s.Selector, e.stepTimeout); err != nil {
			return "", err
		}
		page.Sleep(e.settle)
		return fmt.Sprintf("Clicked '%s'", s.Selector), nil

	case StepPress:
		key := s.Key
		if key == "" {
			key = DefaultKey
		}
		if err := page.Press(s.Selector, key, e.stepTimeout); err != nil {
			return "", err
		}
		return fmt.Sprintf("Pressed '%s' on '%s'", key, s.Selector), nil

	default: // StepWait
		if s.Selector == "" {
			page.Sleep(e.pause)
			return fmt.Sprintf("Waited %dms", e.pause.Milliseconds()), nil
		}
		if err := page.WaitForVisible(s.Selector, e.stepTimeout); err != nil {
			return "", err
		}
		return fmt.Sprintf("Element visible: '%s'", s.Selector), nil
	}
}
