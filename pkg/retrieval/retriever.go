// Package retrieval fetches reference articles and builds the context block
// the answer prompt is grounded on.
package retrieval

import (
	"context"
	"time"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrUnreachable is returned when the reference site did not respond in time.
var ErrUnreachable = errors.New("reference site unreachable")

const (
	DefaultSearchURL = "https://www.wikipedia.org"

	// SearchInput is the search box on the reference site's portal page.
	SearchInput = `input[name="search"]`

	DefaultNavigationTimeout = 15 * time.Second
	DefaultLoadTimeout       = 10 * time.Second

	// typingPause lets the site's search suggestions settle before Enter.
	typingPause = 400 * time.Millisecond

	// LeadParagraphs is how many article paragraphs are read.
	LeadParagraphs = 8
)

// PageAcquirer opens a fresh page, replacing the active one.
type PageAcquirer interface {
	AcquireFresh() (browser.Page, error)
}

// Retriever searches the reference site and returns the lead text of the
// article it lands on.
type Retriever struct {
	pages             PageAcquirer
	searchURL         string
	navigationTimeout time.Duration
	loadTimeout       time.Duration
	log               zerolog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithSearchURL sets the site whose search box is used.
func WithSearchURL(u string) Option {
	return func(r *Retriever) {
		if u != "" {
			r.searchURL = u
		}
	}
}

// WithNavigationTimeout sets the deadline for loading the search page.
func WithNavigationTimeout(d time.Duration) Option {
	return func(r *Retriever) {
		if d > 0 {
			r.navigationTimeout = d
		}
	}
}

// New returns a retriever that drives pages.
func New(pages PageAcquirer, log zerolog.Logger, opts ...Option) *Retriever {
	r := &Retriever{
		pages:             pages,
		searchURL:         DefaultSearchURL,
		navigationTimeout: DefaultNavigationTimeout,
		loadTimeout:       DefaultLoadTimeout,
		log:               log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch searches for topic on a fresh page and returns the article's lead
// text. A timeout anywhere along the way yields ErrUnreachable. The returned
// text may be empty or short; judging it is up to the caller.
func (r *Retriever) Fetch(ctx context.Context, topic string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	page, err := r.pages.AcquireFresh()
	if err != nil {
		return "", errors.Wrap(err, "acquire page")
	}

	if err := r.search(page, topic); err != nil {
		if browser.IsTimeout(err) {
			r.log.Error().Err(err).Str("topic", topic).Msg("reference site timeout")
			return "", errors.Wrap(ErrUnreachable, err.Error())
		}
		return "", err
	}
	r.log.Info().Str("topic", topic).Str("url", page.URL()).Msg("searched reference site")

	html, err := page.Content()
	if err != nil {
		return "", errors.Wrap(err, "read article")
	}
	return browser.LeadText(html, LeadParagraphs)
}

func (r *Retriever) search(page browser.Page, topic string) error {
	if err := page.Goto(r.searchURL, browser.LoadStateDOMContentLoaded, r.navigationTimeout); err != nil {
		return err
	}
	if err := page.Fill(SearchInput, topic, r.navigationTimeout); err != nil {
		return err
	}
	page.Sleep(typingPause)
	if err := page.Press(SearchInput, "Enter", r.navigationTimeout); err != nil {
		return err
	}
	return page.WaitForLoadState(browser.LoadStateDOMContentLoaded, r.loadTimeout)
}
