package browser

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// PageManager owns the single active page of the process.
//
// AcquireFresh replaces the page; at most one page is live at a time. The
// manager's lock covers only the slot itself. Callers holding a Page from
// Current or AcquireFresh are not serialized: two requests that drive the page
// at once interleave their operations, and one may close the page the other is
// using. The service assumes a single user and accepts that.
type PageManager struct {
	mu      sync.Mutex
	launch  Launcher
	browser Browser
	page    Page
	log     zerolog.Logger
}

// NewPageManager returns a manager that starts its browser with launch on
// first use.
func NewPageManager(launch Launcher, log zerolog.Logger) *PageManager {
	return &PageManager{launch: launch, log: log}
}

// AcquireFresh closes the current page, if any, and opens a new one. The
// browser is launched on the first call. Errors closing the old page are
// logged and otherwise ignored.
func (m *PageManager) AcquireFresh() (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		if m.launch == nil {
			return nil, errors.New("browser: no launcher configured")
		}
		b, err := m.launch()
		if err != nil {
			return nil, err
		}
		m.browser = b
		m.log.Info().Msg("browser launched")
	}

	if m.page != nil {
		if err := m.page.Close(); err != nil {
			m.log.Debug().Err(err).Msg("closing previous page")
		}
		m.page = nil
	}

	p, err := m.browser.NewPage()
	if err != nil {
		return nil, err
	}
	m.page = p
	return p, nil
}

// DefaultConnectTimeout bounds the navigation done by Open.
const DefaultConnectTimeout = 15 * time.Second

// Open replaces the active page with a new one and navigates it to rawURL,
// waiting for DOMContentLoaded. A non-positive timeout uses
// DefaultConnectTimeout.
func (m *PageManager) Open(rawURL string, timeout time.Duration) (Page, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	p, err := m.AcquireFresh()
	if err != nil {
		return nil, err
	}
	if err := p.Goto(rawURL, LoadStateDOMContentLoaded, timeout); err != nil {
		return nil, err
	}
	m.log.Info().Str("url", rawURL).Msg("page opened")
	return p, nil
}

// Current returns the active page.
func (m *PageManager) Current() (Page, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page, m.page != nil
}

// HasPage reports whether a page is active.
func (m *PageManager) HasPage() bool {
	_, ok := m.Current()
	return ok
}

// Shutdown closes the page and the browser. The manager can be reused; the
// next AcquireFresh launches a new browser.
func (m *PageManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil {
		_ = m.page.Close()
		m.page = nil
	}
	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	m.browser = nil
	if err != nil {
		return errors.Wrap(err, "browser shutdown")
	}
	m.log.Info().Msg("browser closed")
	return nil
}
