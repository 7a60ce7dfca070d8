// Package plan parses model-generated browser action plans and runs them
// against the active page.
package plan

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoPlanFound is returned when text holds no bracketed array.
var ErrNoPlanFound = errors.New("no JSON array found in actions")

// MalformedPlanError is returned when the bracketed text is not a valid step
// array.
type MalformedPlanError struct {
	Err error
}

func (e *MalformedPlanError) Error() string {
	return "invalid action JSON: " + e.Err.Error()
}

func (e *MalformedPlanError) Unwrap() error {
	return e.Err
}

// ExtractArray returns the text from the first '[' to the last ']' inclusive.
func ExtractArray(text string) (string, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return "", ErrNoPlanFound
	}
	return text[start : end+1], nil
}

// Parse extracts and decodes the step array embedded in text.
func Parse(text string) ([]ActionStep, error) {
	raw, err := ExtractArray(text)
	if err != nil {
		return nil, err
	}

	var steps []ActionStep
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, &MalformedPlanError{Err: err}
	}
	return steps, nil
}
