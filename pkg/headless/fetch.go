package headless

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/DataHenHQ/useragent"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Default settings for headless browser operation.
const (
	DefaultTimeout    = 45 * time.Second
	DefaultWaitBuffer = 500 * time.Millisecond
)

// WaitStrategy navigates to url and returns once the page content is ready to be read.
type WaitStrategy func(ctx context.Context, url string) error

// Options tunes a single rendered fetch. Zero values select the defaults and a
// random desktop user agent.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	WaitBuffer time.Duration
	Logger     logrus.FieldLogger
}

func (o Options) withDefaults() (Options, error) {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.WaitBuffer <= 0 {
		o.WaitBuffer = DefaultWaitBuffer
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.UserAgent == "" {
		ua, err := useragent.Desktop()
		if err != nil {
			return o, fmt.Errorf("could not generate random UA: %w", err)
		}
		o.UserAgent = ua
	}
	return o, nil
}

func allocatorOptions(userAgent string) []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Headless,
		chromedp.WindowSize(1920, 1080),

		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("no-first-run", true),

		// required inside containers
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("single-process", true),
	)
}

// FetchRenderedContent starts a headless Chrome, lets strategy navigate to url
// and wait for dynamic content, then returns the outer HTML of the first
// element matching extractionSelector.
func FetchRenderedContent(parentCtx context.Context, url string, opts Options, strategy WaitStrategy, extractionSelector string) (io.Reader, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(parentCtx, opts.Timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts.UserAgent)...)
	defer cancelAlloc()

	logger := opts.Logger.WithField("url", url)
	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Debugf))
	defer chromeCancel()

	if err := strategy(chromeCtx, url); err != nil {
		return nil, fmt.Errorf("wait strategy failed for %s: %w", url, err)
	}

	var fullHTML string
	tasks := chromedp.Tasks{
		chromedp.Sleep(opts.WaitBuffer),
		chromedp.OuterHTML(extractionSelector, &fullHTML, chromedp.ByQuery),
	}
	if err := chromedp.Run(chromeCtx, tasks); err != nil {
		logger.WithField("length", len(fullHTML)).WithError(err).Warn("Extraction of rendered HTML failed")
		return nil, fmt.Errorf("failed to extract HTML from selector '%s': %w", extractionSelector, err)
	}

	return strings.NewReader(fullHTML), nil
}
