package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserOptions configures the shared headless-browser renderer.
type BrowserOptions struct {
	UserAgent       string
	DisableHeadless bool
	// SettleDelay is how long to wait after document-ready before the DOM
	// is captured, giving late scripts a chance to finish.
	SettleDelay time.Duration
}

// Browser is a Renderer backed by a single headless Chrome instance that is
// shared by every page of a crawl. The instance starts lazily on the first
// Render call and lives until Close; the owner of the crawl is responsible
// for calling Close on all exit paths.
type Browser struct {
	opts BrowserOptions

	mu            sync.Mutex
	started       bool
	closed        bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewBrowser prepares a lazy browser handle. No process is spawned yet.
func NewBrowser(opts BrowserOptions) *Browser {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}
	return &Browser{opts: opts}
}

// ensure starts the browser process on first use. Callers race only on this
// page-creation boundary; rendering itself runs concurrently per tab.
func (b *Browser) ensure() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New("browser is closed")
	}
	if b.started {
		return b.browserCtx, nil
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !b.opts.DisableHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if ua := strings.TrimSpace(b.opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Spawn the process now so later tabs attach to the same instance.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	b.started = true
	return browserCtx, nil
}

// Render opens a fresh tab, navigates to rawURL, waits for the document to
// settle, and returns the serialized DOM. Cancelling ctx closes the tab
// rather than leaving the navigation running unobserved.
func (b *Browser) Render(ctx context.Context, rawURL string) (string, error) {
	browserCtx, err := b.ensure()
	if err != nil {
		return "", err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			tabCancel()
		case <-stop:
		}
	}()
	defer close(stop)

	var htmlStr string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(rawURL),
		waitForDocumentReady(),
		chromedp.Sleep(b.opts.SettleDelay),
		chromedp.OuterHTML("html", &htmlStr, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("render %s: %w", rawURL, err)
	}
	return htmlStr, nil
}

// Close tears down the shared browser instance. Safe to call more than once;
// Render fails afterwards.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if !b.started {
		return nil
	}
	b.browserCancel()
	b.allocCancel()
	b.started = false
	return nil
}

func waitForDocumentReady() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "complete" {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
