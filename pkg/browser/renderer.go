package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"

	"idea-harvest/pkg/logging"
)

// PageRequest describes one catalog page to load and expand.
type PageRequest struct {
	URL              string
	WaitSelector     string // element that signals the listing has rendered
	LoadMoreSelector string // "load more" control; empty disables expansion
	MaxLoadMore      int    // cap on load-more interactions
	SettleDelay      time.Duration
}

// Renderer loads a page and returns its rendered HTML. Implementations must
// release every browser resource they acquire before returning.
type Renderer interface {
	Render(ctx context.Context, req PageRequest) (string, error)
}

// Options configures the headless Chrome renderer.
type Options struct {
	ExecPath    string
	UserAgent   string
	StepTimeout time.Duration // navigation, wait and each load-more step
}

// ChromeRenderer renders pages in a fresh headless Chrome per call.
type ChromeRenderer struct {
	allocOpts   []chromedp.ExecAllocatorOption
	stepTimeout time.Duration
	log         *slog.Logger
}

// NewChromeRenderer builds a renderer; Chrome is only launched by Render.
func NewChromeRenderer(opts Options) *ChromeRenderer {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1366, 900),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	timeout := opts.StepTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ChromeRenderer{
		allocOpts:   allocOpts,
		stepTimeout: timeout,
		log:         logging.New("browser"),
	}
}

// Render navigates to req.URL, clicks the load-more control until it
// disappears or MaxLoadMore is reached, and returns the page's outer HTML.
// The browser is closed on every exit path.
func (r *ChromeRenderer) Render(ctx context.Context, req PageRequest) (html string, err error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer func() {
		if cerr := chromedp.Cancel(browserCtx); cerr != nil {
			r.log.Warn("browser close failed", "url", req.URL, "error", cerr)
		}
		browserCancel()
		allocCancel()
	}()

	// start the browser on browserCtx itself; a first Run on a step timeout
	// context would tie the browser's lifetime to that step
	if err := chromedp.Run(browserCtx); err != nil {
		return "", fmt.Errorf("start browser: %w", err)
	}

	waitSel := req.WaitSelector
	if waitSel == "" {
		waitSel = "body"
	}

	if err := r.step(browserCtx,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady(waitSel, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("load %s: %w", req.URL, err)
	}

	if req.LoadMoreSelector != "" && req.MaxLoadMore > 0 {
		clicks, err := LoadMore(browserCtx, req.MaxLoadMore, req.SettleDelay, func(ctx context.Context) (bool, error) {
			return r.clickLoadMore(ctx, req.LoadMoreSelector)
		})
		r.log.Debug("load-more finished", "url", req.URL, "clicks", clicks)
		if err != nil {
			// keep what has been loaded so far
			r.log.Warn("load-more interrupted", "url", req.URL, "clicks", clicks, "error", err)
		}
	}

	if err := r.step(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read rendered HTML of %s: %w", req.URL, err)
	}
	return html, nil
}

func (r *ChromeRenderer) step(ctx context.Context, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()
	return chromedp.Run(stepCtx, actions...)
}

// clickLoadMore clicks the control if it is present and visible.
func (r *ChromeRenderer) clickLoadMore(ctx context.Context, selector string) (bool, error) {
	script := `(() => {
		const el = document.querySelector(` + strconv.Quote(selector) + `);
		if (!el || el.disabled || el.offsetParent === null) { return false; }
		el.scrollIntoView();
		el.click();
		return true;
	})()`

	var clicked bool
	if err := r.step(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}

// LoadMore runs click until it reports the control is gone, max clicks have
// happened, or an error occurs. Iterations are strictly sequential; settle is
// waited after every successful click. It returns the number of clicks.
func LoadMore(ctx context.Context, max int, settle time.Duration, click func(context.Context) (bool, error)) (int, error) {
	clicks := 0
	for clicks < max {
		if err := ctx.Err(); err != nil {
			return clicks, err
		}

		clicked, err := click(ctx)
		if err != nil {
			return clicks, err
		}
		if !clicked {
			return clicks, nil
		}
		clicks++

		if settle > 0 {
			select {
			case <-time.After(settle):
			case <-ctx.Done():
				return clicks, ctx.Err()
			}
		}
	}
	return clicks, nil
}
