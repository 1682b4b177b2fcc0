// Package browser wraps chromedp with the session discipline the
// verification engine needs: one isolated browser tab per lookup, never
// shared or pooled, so typed form state and cookies cannot leak between
// lookups.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// settleDelay is how long we give a page to finish XHR-driven rendering
// after the ready state fires. Board sites are slow and script-heavy.
const settleDelay = 1500 * time.Millisecond

// Manager owns the shared Chrome process allocator. Sessions created from
// it are isolated tabs; the underlying process is reused because spawning
// a browser per lookup would dominate the sweep runtime.
type Manager struct {
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewManager configures the Chrome allocator. The browser process itself
// starts lazily on the first session.
func NewManager(headless bool) *Manager {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Manager{allocCtx: allocCtx, cancel: cancel}
}

// Close shuts down the browser process.
func (m *Manager) Close() { m.cancel() }

// Session is one browser tab scoped to a single verification call. It
// carries its own deadline; job-level cancellation deliberately does not
// propagate here, so an in-flight lookup runs to its own timeout instead
// of being killed mid-DOM-interaction.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

// NewSession opens a fresh tab with the given lifetime.
func (m *Manager) NewSession(timeout time.Duration) (*Session, error) {
	tabCtx, cancelTab := chromedp.NewContext(m.allocCtx)
	ctx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	s := &Session{ctx: ctx, cancels: []context.CancelFunc{cancelTimeout, cancelTab}}
	// Force tab allocation now so session errors surface here, not on
	// the first navigation.
	if err := chromedp.Run(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: open tab: %w", err)
	}
	return s, nil
}

// Close releases the tab. Safe to call more than once.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// Navigate loads the URL and waits for the page to settle.
func (s *Session) Navigate(url string) error {
	err := chromedp.Run(s.ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return s.Settle()
}

// Settle gives in-page scripts time to finish rendering results.
func (s *Session) Settle() error {
	return chromedp.Run(s.ctx, chromedp.Sleep(settleDelay))
}

// Clear empties the value of the element at selector.
func (s *Session) Clear(selector string) error {
	return chromedp.Run(s.ctx, chromedp.Clear(selector, chromedp.ByQuery))
}

// Type sends the text into the element at selector.
func (s *Session) Type(selector, text string) error {
	return chromedp.Run(s.ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// Click activates the element at selector.
func (s *Session) Click(selector string) error {
	return chromedp.Run(s.ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// SubmitKey sends an Enter keystroke to the element at selector, the
// fallback when no submit control can be located.
func (s *Session) SubmitKey(selector string) error {
	return chromedp.Run(s.ctx, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery))
}

// Eval runs a JavaScript expression, discarding its value.
func (s *Session) Eval(expr string) error {
	return chromedp.Run(s.ctx, chromedp.Evaluate(expr, nil))
}

// eval runs a JavaScript expression and unmarshals its value into out.
func (s *Session) eval(expr string, out any) error {
	return chromedp.Run(s.ctx, chromedp.Evaluate(expr, out))
}

// VisibleText returns the rendered text of the page body.
func (s *Session) VisibleText() (string, error) {
	var text string
	if err := chromedp.Run(s.ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: page text: %w", err)
	}
	return text, nil
}

// HTML returns the full rendered document markup.
func (s *Session) HTML() (string, error) {
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: page html: %w", err)
	}
	return html, nil
}
