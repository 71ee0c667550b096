package scrape

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/mediascribe/mediascribe/internal/pipeline"
)

// headlessRenderer owns a lazily-started headless Chrome instance shared
// by all headless strategy invocations.
type headlessRenderer struct {
	userAgent string

	once          sync.Once
	initErr       error
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

func newHeadlessRenderer(userAgent string) *headlessRenderer {
	return &headlessRenderer{userAgent: userAgent}
}

func (h *headlessRenderer) start() error {
	h.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.UserAgent(h.userAgent),
		)
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx); err != nil {
			allocCancel()
			browserCancel()
			h.initErr = fmt.Errorf("chromedp warmup: %w", err)
			return
		}
		h.browserCtx = browserCtx
		h.browserCancel = browserCancel
		h.allocCancel = allocCancel
	})
	return h.initErr
}

func (h *headlessRenderer) close() {
	if h.browserCancel != nil {
		h.browserCancel()
	}
	if h.allocCancel != nil {
		h.allocCancel()
	}
}

// render executes the page with JavaScript enabled and returns the DOM
// snapshot after the body is ready.
func (h *headlessRenderer) render(ctx context.Context, pageURL string) (string, error) {
	if err := h.start(); err != nil {
		return "", pipeline.Recoverable(err)
	}

	tabCtx, cancelTab := chromedp.NewContext(h.browserCtx)
	defer cancelTab()

	// Tab contexts descend from the browser, not the request; forward the
	// request's cancellation by hand.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			cancelTab()
		case <-stop:
		}
	}()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", pipeline.Recoverable(fmt.Errorf("chromedp render: %w", err))
	}
	return html, nil
}

func (s *Scraper) viaHeadless(ctx context.Context, pageURL string) (pipeline.PageResult, error) {
	html, err := s.headless.render(ctx, pageURL)
	if err != nil {
		return pipeline.PageResult{}, err
	}
	text, err := cleanHTML([]byte(html))
	if err != nil {
		return pipeline.PageResult{}, err
	}
	return pipeline.PageResult{Text: text}, nil
}
