package dialogue

import (
	"context"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/entrhq/medisimple/pkg/llm"
	"github.com/entrhq/medisimple/pkg/plan"
	"github.com/entrhq/medisimple/pkg/prompts"
	"github.com/entrhq/medisimple/pkg/retrieval"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrNoArticle is returned when the active page has too little text to
// simplify.
var ErrNoArticle = errors.New("could not extract meaningful article content from this page")

const (
	DefaultSimplifyCharCap   = 4000
	DefaultSimplifyMinLength = 100
)

// Simplifier rewrites the article on the active page in plain language.
type Simplifier struct {
	pages     plan.PageSource
	provider  llm.Provider
	prompts   *prompts.Registry
	charCap   int
	minLength int
	log       zerolog.Logger
}

// NewSimplifier returns a simplifier. A non-positive charCap uses the
// default.
func NewSimplifier(pages plan.PageSource, provider llm.Provider, registry *prompts.Registry, charCap int, log zerolog.Logger) *Simplifier {
	if charCap <= 0 {
		charCap = DefaultSimplifyCharCap
	}
	return &Simplifier{
		pages:     pages,
		provider:  provider,
		prompts:   registry,
		charCap:   charCap,
		minLength: DefaultSimplifyMinLength,
		log:       log,
	}
}

// Simplify extracts the main text of the active page and returns the
// model's plain-language rewrite.
func (s *Simplifier) Simplify(ctx context.Context) (string, error) {
	page, ok := s.pages.Current()
	if !ok {
		return "", plan.ErrNoActivePage
	}

	html, err := page.Content()
	if err != nil {
		return "", errors.Wrap(err, "read page")
	}
	content, err := browser.MainText(html)
	if err != nil {
		return "", err
	}
	if retrieval.RuneLen(content) < s.minLength {
		return "", ErrNoArticle
	}

	content = retrieval.Truncate(content, s.charCap)
	s.log.Info().Int("chars", retrieval.RuneLen(content)).Msg("extracted article for simplification")

	return llm.Generate(ctx, s.provider, s.prompts.Get(prompts.ArticleSimplification, prompts.Vars{
		"content": content,
	}))
}
