package plan

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// StepType names a browser action.
type StepType string

const (
	StepFill  StepType = "fill"
	StepClick StepType = "click"
	StepPress StepType = "press"
	StepWait  StepType = "wait"
)

// DefaultKey is pressed when a press step names no key.
const DefaultKey = "Enter"

// ActionStep is one entry of a plan. Selector is required for fill, click
// and press; a wait without one is a fixed pause.
type ActionStep struct {
	Type     StepType `json:"type" yaml:"type"`
	Selector string   `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
	Key      string   `json:"key,omitempty" yaml:"key,omitempty"`

	// invalid is set when a decoded field could not be read as text. The
	// step then fails on its own without stopping the plan.
	invalid error
}

// UnmarshalJSON decodes a step leniently. Numbers and booleans are kept as
// their literal text, and a type that is not a string decodes to its literal
// so the step reports as unknown. A selector, value or key holding an object
// or array marks only this step as failed.
func (s *ActionStep) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*s = ActionStep{}
	typ, err := scalarText(fields["type"])
	if err != nil {
		typ = string(fields["type"])
	}
	s.Type = StepType(typ)

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"selector", &s.Selector},
		{"value", &s.Value},
		{"key", &s.Key},
	} {
		v, err := scalarText(fields[f.name])
		if err != nil {
			if s.invalid == nil {
				s.invalid = errors.Wrap(err, f.name)
			}
			continue
		}
		*f.dst = v
	}
	return nil
}

// Err reports a field that could not be decoded as text.
func (s ActionStep) Err() error {
	return s.invalid
}

func scalarText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var v string
		err := json.Unmarshal(raw, &v)
		return v, err
	case '{', '[':
		return "", errors.Errorf("expected text, got %s", raw)
	default:
		return string(raw), nil
	}
}

// Outcome is how a step ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
	OutcomeUnknown Outcome = "unknown"
)

// StepResult reports one step. Results are produced one per step, in plan
// order.
type StepResult struct {
	Index   int     `json:"index"`
	Type    string  `json:"type"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
}

// Summary counts results by outcome.
func Summary(results []StepResult) map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}

// String renders the result as a one-line status.
func (r StepResult) String() string {
	switch r.Outcome {
	case OutcomeOK:
		return "✓ " + r.Message
	case OutcomeUnknown, OutcomeSkipped:
		return "⚠ " + r.Message
	default:
		return "✗ " + r.Message
	}
}
