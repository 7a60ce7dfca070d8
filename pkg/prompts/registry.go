// Package prompts holds the named text templates sent to the language model.
//
// Templates use {name} placeholders. Literal braces are written as {{ and }}.
// A registry always starts from the built-in defaults; a YAML or JSON file can
// override or add templates by name.
package prompts

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Names of the templates the service uses.
const (
	ConfirmationDetection = "confirmation_detection"
	FollowUpDetection     = "followup_detection"
	TypoDetection         = "typo_detection"
	Simplification        = "simplification"
	ArticleSimplification = "article_simplification"
	ActionPlanning        = "action_planning"
)

//go:embed defaults.yaml
var defaultTemplates []byte

// Template is one versioned prompt.
type Template struct {
	Version  string `yaml:"version" json:"version"`
	Template string `yaml:"template" json:"template"`
}

// Vars maps placeholder names to their values.
type Vars map[string]string

// MissingVariableError is returned by Render when a placeholder has no value.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return "missing variable " + e.Name
}

// Registry resolves prompt names to rendered text.
type Registry struct {
	templates map[string]Template
	log       zerolog.Logger
}

// New returns a registry holding only the built-in templates.
func New(log zerolog.Logger) *Registry {
	r := &Registry{templates: make(map[string]Template), log: log}
	if err := yaml.Unmarshal(defaultTemplates, &r.templates); err != nil {
		// defaults.yaml is compiled in; a parse failure is a build defect
		panic(errors.Wrap(err, "parse built-in prompts"))
	}
	return r
}

// Load returns a registry with the templates in path layered over the
// built-in ones. Files ending in .json are parsed as JSON, anything else as
// YAML.
func Load(path string, log zerolog.Logger) (*Registry, error) {
	r := New(log)
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "read prompts file %s", path)
	}

	overrides := make(map[string]Template)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &overrides)
	} else {
		err = yaml.Unmarshal(data, &overrides)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse prompts file %s", path)
	}

	for name, t := range overrides {
		r.templates[name] = t
	}
	log.Info().Int("count", len(overrides)).Str("path", path).Strs("prompts", r.Names()).Msg("loaded prompts")
	return r, nil
}

// Get renders the named template. A missing template or variable is logged
// and yields "".
func (r *Registry) Get(name string, vars Vars) string {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error().Str("prompt", name).Msg("prompt not found")
		return ""
	}

	out, err := Render(t.Template, vars)
	if err != nil {
		r.log.Error().Err(err).Str("prompt", name).Msg("failed to render prompt")
		return ""
	}
	return out
}

// Version returns the version of the named template, or "" if unknown.
func (r *Registry) Version(name string) string {
	return r.templates[name].Version
}

// Names returns the registered template names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render substitutes {name} placeholders in tmpl.
func Render(tmpl string, vars Vars) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", errors.Errorf("unclosed placeholder at offset %d", i)
			}
			name := tmpl[i+1 : i+1+end]
			v, ok := vars[name]
			if !ok {
				return "", &MissingVariableError{Name: name}
			}
			b.WriteString(v)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
