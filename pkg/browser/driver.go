// Package browser drives the remote page the service reads articles from and
// runs action plans against.
//
// The Page and Browser interfaces cover only what the service uses, so tests
// can swap in fakes. The playwright adapter in this package is the production
// implementation.
package browser

import (
	"time"

	"github.com/pkg/errors"
)

// LoadState is the page lifecycle event a navigation waits for.
type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// ErrTimeout matches errors returned when a page operation ran out of time.
var ErrTimeout = errors.New("browser: timeout")

// Page is one remote page.
type Page interface {
	Goto(url string, waitUntil LoadState, timeout time.Duration) error
	Fill(selector, value string, timeout time.Duration) error
	Click(selector string, timeout time.Duration) error
	Press(selector, key string, timeout time.Duration) error

	// WaitForVisible waits until selector matches a visible element.
	WaitForVisible(selector string, timeout time.Duration) error

	// Sleep pauses on the page's event loop.
	Sleep(d time.Duration)

	WaitForLoadState(state LoadState, timeout time.Duration) error
	Evaluate(script string) (interface{}, error)
	Content() (string, error)
	URL() string
	Close() error
}

// Browser creates pages.
type Browser interface {
	NewPage() (Page, error)
	Close() error
}

// Launcher starts a browser. PageManager calls it at most once per browser
// lifetime.
type Launcher func() (Browser, error)

// IsTimeout reports whether err is a page operation timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

type timeoutError struct {
	op  string
	err error
}

func (e *timeoutError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *timeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *timeoutError) Unwrap() error {
	return e.err
}

// NewTimeoutError wraps err so that IsTimeout reports true for it.
func NewTimeoutError(op string, err error) error {
	return &timeoutError{op: op, err: err}
}
