package browser

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightOptions configures the Chromium launcher.
type PlaywrightOptions struct {
	Headless bool

	// SkipInstall skips downloading the driver and browsers before starting.
	SkipInstall bool
}

// PlaywrightLauncher returns a Launcher that starts the playwright driver and
// a Chromium instance.
func PlaywrightLauncher(opts PlaywrightOptions) Launcher {
	return func() (Browser, error) {
		// keep driver output away from stdout; the terminal client owns it
		runOpts := &playwright.RunOptions{
			Verbose: false,
			Stdout:  io.Discard,
			Stderr:  io.Discard,
		}

		if !opts.SkipInstall {
			if err := playwright.Install(runOpts); err != nil {
				return nil, errors.Wrap(err, "failed to install playwright")
			}
		}

		pw, err := playwright.Run(runOpts)
		if err != nil {
			return nil, errors.Wrap(err, "failed to start playwright")
		}

		headless := opts.Headless
		b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: &headless,
		})
		if err != nil {
			_ = pw.Stop()
			return nil, errors.Wrap(err, "failed to launch browser")
		}

		return &playwrightBrowser{pw: pw, browser: b}, nil
	}
}

type playwrightBrowser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

func (b *playwrightBrowser) NewPage() (Page, error) {
	p, err := b.browser.NewPage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create page")
	}
	return &playwrightPage{page: p}, nil
}

// Close closes the browser and stops the driver.
func (b *playwrightBrowser) Close() error {
	closeErr := b.browser.Close()
	if err := b.pw.Stop(); err != nil {
		return errors.Wrap(err, "failed to stop playwright")
	}
	return closeErr
}

type playwrightPage struct {
	page playwright.Page
}

func ms(d time.Duration) *float64 {
	v := float64(d.Milliseconds())
	return &v
}

func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return NewTimeoutError(op, err)
	}
	return errors.Wrap(err, op)
}

func (p *playwrightPage) Goto(url string, waitUntil LoadState, timeout time.Duration) error {
	opts := playwright.PageGotoOptions{}
	if waitUntil != "" {
		w := playwright.WaitUntilState(waitUntil)
		opts.WaitUntil = &w
	}
	if timeout > 0 {
		opts.Timeout = ms(timeout)
	}
	_, err := p.page.Goto(url, opts)
	return translate("navigate", err)
}

func (p *playwrightPage) Fill(selector, value string, timeout time.Duration) error {
	opts := playwright.PageFillOptions{}
	if timeout > 0 {
		opts.Timeout = ms(timeout)
	}
	return translate("fill", p.page.Fill(selector, value, opts))
}

func (p *playwrightPage) Click(selector string, timeout time.Duration) error {
	opts := playwright.PageClickOptions{}
	if timeout > 0 {
		opts.Timeout = ms(timeout)
	}
	return translate("click", p.page.Click(selector, opts))
}

func (p *playwrightPage) Press(selector, key string, timeout time.Duration) error {
	opts := playwright.PagePressOptions{}
	if timeout > 0 {
		opts.Timeout = ms(timeout)
	}
	return translate("press", p.page.Press(selector, key, opts))
}

func (p *playwrightPage) WaitForVisible(selector string, timeout time.Duration) error {
	state := playwright.WaitForSelectorState("visible")
	opts := playwright.PageWaitForSelectorOptions{State: &state}
	if timeout > 0 {
		opts.Timeout = ms(timeout)
	}
	_, err := p.page.WaitForSelector(selector, opts)
	return translate("wait", err)
}

func (p *playwrightPage) Sleep(d time.Duration) {
	p.page.WaitForTimeout(float64(d.Milliseconds()))
}

func (p *playwrightPage) WaitForLoadState(state LoadState, timeout time.Duration) error {
	opts := playwright.PageWaitForLoadStateOptions{}
	if state != "" {
		s := playwright.LoadState(state)
		opts.State = &s
	}
	if timeout > 0 {
		opts.Timeout = ms(timeout)
	}
	return translate("wait for load state", p.page.WaitForLoadState(opts))
}

func (p *playwrightPage) Evaluate(script string) (interface{}, error) {
	v, err := p.page.Evaluate(script)
	return v, translate("evaluate", err)
}

func (p *playwrightPage) Content() (string, error) {
	c, err := p.page.Content()
	return c, translate("content", err)
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}
