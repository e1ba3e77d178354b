package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// chromePaths are probed in order when no Chrome is on PATH.
var chromePaths = []string{
	"/usr/bin/chromium-browser", // Alpine Linux
	"/usr/bin/chromium",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
}

// HeadlessFetcher renders pages in headless Chrome, for sites whose bot
// challenge only clears after running JavaScript. One browser is started per
// fetcher and each Fetch opens a new tab.
type HeadlessFetcher struct {
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	timeout       time.Duration
	settle        time.Duration
	log           logrus.FieldLogger
}

// NewHeadlessFetcher starts a headless browser. Close must be called to stop
// it.
func NewHeadlessFetcher(timeout time.Duration, userAgent string, log logrus.FieldLogger) (*HeadlessFetcher, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	for _, p := range chromePaths {
		if _, err := os.Stat(p); err == nil {
			opts = append(opts, chromedp.ExecPath(p))
			break
		}
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Debugf("chromedp: "+format, args...)
		}),
	)

	// Start the browser now so a missing Chrome fails at startup
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start headless browser: %w", err)
	}

	return &HeadlessFetcher{
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		timeout:       timeout,
		settle:        2 * time.Second,
		log:           log,
	}, nil
}

// Fetch navigates a new tab to rawURL and returns the rendered document.
func (f *HeadlessFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	// Tabs derive from the browser context; tie them to the caller too
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "es-AR,es;q=0.9,en;q=0.8",
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Raw page.Navigate avoids chromedp.Navigate's own load timeout
			_, _, errorText, _, err := page.Navigate(rawURL).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return errors.New(errorText)
			}
			return nil
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("failed to render page: %w", err)}
	}

	f.log.WithFields(logrus.Fields{"url": rawURL, "bytes": len(html)}).Debug("Rendered page")

	return html, nil
}

// Close stops the browser.
func (f *HeadlessFetcher) Close() error {
	f.cancelBrowser()
	f.cancelAlloc()
	return nil
}
