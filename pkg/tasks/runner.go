package tasks

import (
	"context"
	"time"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/entrhq/medisimple/pkg/plan"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Opener replaces the active page with one showing a URL.
type Opener interface {
	Open(rawURL string, timeout time.Duration) (browser.Page, error)
}

// Runner replays saved tasks.
type Runner struct {
	store      *Store
	pages      Opener
	exec       *plan.Executor
	hosts      *browser.HostMatcher
	navTimeout time.Duration
	log        zerolog.Logger
}

// NewRunner returns a runner. hosts may be nil to allow every host.
func NewRunner(store *Store, pages Opener, exec *plan.Executor, hosts *browser.HostMatcher, navTimeout time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		store:      store,
		pages:      pages,
		exec:       exec,
		hosts:      hosts,
		navTimeout: navTimeout,
		log:        log,
	}
}

// Run opens the task's URL on a fresh page and runs its actions, returning
// the ordered step results.
func (r *Runner) Run(ctx context.Context, name string) ([]plan.StepResult, error) {
	task, err := r.store.Get(name)
	if err != nil {
		return nil, err
	}
	if err := r.hosts.Check(task.URL); err != nil {
		return nil, err
	}

	r.log.Info().Str("task", name).Str("url", task.URL).Int("actions", len(task.Actions)).Msg("running task")
	page, err := r.pages.Open(task.URL, r.navTimeout)
	if err != nil {
		return nil, err
	}
	// replayed selectors expect a settled page
	if err := page.WaitForLoadState(browser.LoadStateNetworkIdle, r.navTimeout); err != nil {
		return nil, errors.Wrap(err, "wait for network idle")
	}
	return r.exec.Run(ctx, task.Actions)
}
