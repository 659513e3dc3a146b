package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; LeafletScraper)"
)

// ErrUnexpectedStatus is matched by every StatusError.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// StatusError reports a page that answered with a non-success status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s (%s)", ErrUnexpectedStatus, e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Fetcher defines the contract for fetching a page.
// This is the interface you would mock for testing.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

// httpFetcher fetches pages with a single resty client, so connections are
// reused for the whole run.
type httpFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher that sends userAgent with every request and
// gives up after timeout. Zero values fall back to the defaults.
func NewHTTPFetcher(timeout time.Duration, userAgent string) Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)

	return &httpFetcher{client: client}
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode()}
	}
	return bytes.NewReader(resp.Body()), nil
}
