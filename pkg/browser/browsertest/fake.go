// Package browsertest provides in-memory fakes of the browser interfaces.
package browsertest

import (
	"strings"
	"sync"
	"time"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/pkg/errors"
)

// Page is a scripted browser.Page. Every call is recorded in Calls as
// "<op> <args...>". Errors are looked up in Errors by "<op>" or
// "<op> <selector>", the more specific key winning.
type Page struct {
	mu sync.Mutex

	HTML       string
	EvalResult interface{}
	Errors     map[string]error

	calls  []string
	url    string
	closed bool
	slept  time.Duration
}

var _ browser.Page = (*Page)(nil)

// NewPage returns an empty fake page at about:blank.
func NewPage() *Page {
	return &Page{url: "about:blank", Errors: map[string]error{}}
}

func (p *Page) record(op string, args ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, strings.TrimSpace(op+" "+strings.Join(args, " ")))
	if len(args) > 0 {
		if err, ok := p.Errors[op+" "+args[0]]; ok {
			return err
		}
	}
	return p.Errors[op]
}

func (p *Page) Goto(url string, waitUntil browser.LoadState, timeout time.Duration) error {
	if err := p.record("goto", url); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) Fill(selector, value string, timeout time.Duration) error {
	return p.record("fill", selector, value)
}

func (p *Page) Click(selector string, timeout time.Duration) error {
	return p.record("click", selector)
}

func (p *Page) Press(selector, key string, timeout time.Duration) error {
	return p.record("press", selector, key)
}

func (p *Page) WaitForVisible(selector string, timeout time.Duration) error {
	return p.record("wait", selector)
}

func (p *Page) Sleep(d time.Duration) {
	_ = p.record("sleep", d.String())
	p.mu.Lock()
	p.slept += d
	p.mu.Unlock()
}

func (p *Page) WaitForLoadState(state browser.LoadState, timeout time.Duration) error {
	return p.record("loadstate", string(state))
}

func (p *Page) Evaluate(script string) (interface{}, error) {
	if err := p.record("evaluate"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.EvalResult, nil
}

func (p *Page) Content() (string, error) {
	if err := p.record("content"); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.HTML, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Close() error {
	err := p.record("close")
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return err
}

// Calls returns the recorded calls in order.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Slept returns the total time passed to Sleep.
func (p *Page) Slept() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slept
}

// Browser hands out pages from NewPageFunc, or fresh fake pages.
type Browser struct {
	mu sync.Mutex

	NewPageFunc func() (*Page, error)
	CloseErr    error

	pages  []*Page
	closed bool
}

var _ browser.Browser = (*Browser)(nil)

func (b *Browser) NewPage() (browser.Page, error) {
	var (
		p   *Page
		err error
	)
	if b.NewPageFunc != nil {
		p, err = b.NewPageFunc()
	} else {
		p = NewPage()
	}
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return b.CloseErr
}

// Pages returns every page created so far.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Page, len(b.pages))
	copy(out, b.pages)
	return out
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Launcher returns a launcher that hands out b and counts launches.
func Launcher(b *Browser, launches *int) browser.Launcher {
	return func() (browser.Browser, error) {
		if launches != nil {
			*launches++
		}
		return b, nil
	}
}

// FailingLauncher returns a launcher that always fails with err.
func FailingLauncher(err error) browser.Launcher {
	return func() (browser.Browser, error) {
		return nil, errors.Wrap(err, "launch")
	}
}
