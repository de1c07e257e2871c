// Package browser drives live pages with playwright. A page is snapshotted
// into an htmldom document, the pipeline runs on the snapshot, and the
// resulting field state is replayed onto the live page. LivePage is the
// coordinator.Page of browser-backed sessions.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"formautofill/coordinator"
	"formautofill/dom/htmldom"
	"formautofill/models"
	"formautofill/utils"
)

const defaultNavigationTimeout = 30 * time.Second

type Options struct {
	Headless          bool
	NavigationTimeout time.Duration
}

// Browser owns one playwright driver and one chromium instance.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
	logger  *utils.Logger
}

func Launch(opts Options, logger *utils.Logger) (*Browser, error) {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = defaultNavigationTimeout
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	return &Browser{pw: pw, browser: b, opts: opts, logger: logger.Named("browser")}, nil
}

func (b *Browser) Close() error {
	if err := b.browser.Close(); err != nil {
		_ = b.pw.Stop()
		return err
	}
	return b.pw.Stop()
}

// LivePage is an open browser page.
type LivePage struct {
	page   playwright.Page
	logger *utils.Logger
}

var _ coordinator.Page = (*LivePage)(nil)

// Open navigates to url and waits for the page to settle. Browser system
// pages are refused before any navigation happens.
func (b *Browser) Open(ctx context.Context, url string) (*LivePage, error) {
	if err := coordinator.CheckURL(url); err != nil {
		return nil, err
	}
	page, err := b.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = page.Close() })
	defer stop()

	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(b.opts.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("could not navigate to %s: %w", url, err)
	}

	return &LivePage{page: page, logger: b.logger}, nil
}

// Snapshot parses the current content of the live page.
func (p *LivePage) Snapshot(ctx context.Context) (*htmldom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := p.page.Content()
	if err != nil {
		return nil, fmt.Errorf("could not read page content: %w", err)
	}
	return htmldom.Parse(p.page.URL(), content)
}

// Apply copies the state of every successfully filled field from doc onto
// the live page and marks it with highlightClass. Locator calls are bounded
// by the deadline of ctx. It returns the targets that could not be updated.
func (p *LivePage) Apply(ctx context.Context, doc *htmldom.Document, summary models.FillSummary, highlightClass string) map[string]error {
	return replay(ctx, doc, summary, highlightClass, func(selector string) control {
		return &locatorControl{loc: p.page.Locator(selector).First(), timeout: timeoutOf(ctx)}
	}, p.logger)
}

// timeoutOf converts the time left on ctx into a playwright timeout in
// milliseconds, or nil to keep the playwright default.
func timeoutOf(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	left := time.Until(deadline).Milliseconds()
	if left < 1 {
		left = 1
	}
	return playwright.Float(float64(left))
}

// ClearHighlights removes class from every element of the live page and
// reports how many carried it.
func (p *LivePage) ClearHighlights(ctx context.Context, class string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.page.Evaluate(`cls => {
		const els = document.querySelectorAll("." + CSS.escape(cls));
		els.forEach(el => el.classList.remove(cls));
		return els.length;
	}`, class)
	if err != nil {
		return 0, err
	}
	switch v := n.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	}
	return 0, nil
}

func (p *LivePage) Close() error {
	return p.page.Close()
}

// locatorControl applies field state through a playwright locator.
type locatorControl struct {
	loc     playwright.Locator
	timeout *float64
}

func (c *locatorControl) Fill(value string) error {
	return c.loc.Fill(value, playwright.LocatorFillOptions{Timeout: c.timeout})
}

func (c *locatorControl) SelectValues(values []string) error {
	_, err := c.loc.SelectOption(playwright.SelectOptionValues{Values: &values},
		playwright.LocatorSelectOptionOptions{Timeout: c.timeout})
	return err
}

func (c *locatorControl) SetChecked(checked bool) error {
	return c.loc.SetChecked(checked, playwright.LocatorSetCheckedOptions{Timeout: c.timeout})
}

func (c *locatorControl) Finish() error {
	if err := c.loc.DispatchEvent("change", nil, playwright.LocatorDispatchEventOptions{Timeout: c.timeout}); err != nil {
		return err
	}
	return c.loc.Blur(playwright.LocatorBlurOptions{Timeout: c.timeout})
}

func (c *locatorControl) Highlight(class string) error {
	_, err := c.loc.Evaluate(`(el, cls) => el.classList.add(cls)`, class,
		playwright.LocatorEvaluateOptions{Timeout: c.timeout})
	return err
}
