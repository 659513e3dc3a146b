package repository

import (
	"context"
	"fmt"
	"io"
	"time"

	"leaflet_scraper/pkg/headless"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const (
	// readySelector is awaited on every page; listing pages may legitimately
	// contain no leaflets, so waiting for a listing would only time out.
	readySelector      = "body"
	extractionSelector = "html"
)

// headlessFetcher renders pages in headless Chrome before returning them.
type headlessFetcher struct {
	opts headless.Options
}

// NewHeadlessFetcher creates a fetcher for sites that build their listings
// client-side. An empty userAgent picks a random desktop one per page.
func NewHeadlessFetcher(timeout time.Duration, userAgent string, logger logrus.FieldLogger) Fetcher {
	return &headlessFetcher{
		opts: headless.Options{
			Timeout:   timeout,
			UserAgent: userAgent,
			Logger:    logger,
		},
	}
}

func (f *headlessFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	return headless.FetchRenderedContent(ctx, url, f.opts, LeafletPageWaitStrategy, extractionSelector)
}

// LeafletPageWaitStrategy navigates to url, rejects non-success responses and
// waits until the document body is ready.
func LeafletPageWaitStrategy(ctx context.Context, url string) error {
	resp, err := chromedp.RunResponse(ctx, chromedp.Navigate(url))
	if err != nil {
		return fmt.Errorf("could not navigate to '%s': %w", url, err)
	}
	if resp != nil && (resp.Status < 200 || resp.Status > 299) {
		return &StatusError{URL: url, StatusCode: int(resp.Status)}
	}

	err = chromedp.Run(ctx,
		chromedp.Evaluate(`Object.defineProperty(navigator, 'webdriver', {get: () => false, configurable: true});`, nil),
		chromedp.WaitReady(readySelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("timed out waiting for '%s' on %s: %w", readySelector, url, err)
	}
	return nil
}
