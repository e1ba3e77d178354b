package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultUserAgent is a current desktop Chrome; listing sites tend to serve
// challenge pages to anything that does not look like a browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 10 << 20

// Fetcher downloads a listing page and returns its HTML.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchError describes a failed page download. StatusCode is zero when no
// HTTP response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether retrying err cannot help: the page is gone,
// the host does not exist or the URL is unusable. Everything else (timeouts,
// 5xx, 403 challenge pages) is treated as transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return true
		}
	}

	// DNS errors (domain doesn't exist)
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}

	// Invalid URL
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return true
	}
	if errors.Is(err, errUnsupportedScheme) {
		return true
	}

	return false
}

var errUnsupportedScheme = errors.New("unsupported protocol scheme")

// HTTPFetcher fetches pages with a plain HTTP client dressed up as a browser.
// Cookies set by one page (for example a bot challenge) are sent with the
// next.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout. An
// empty userAgent means DefaultUserAgent.
func NewHTTPFetcher(timeout time.Duration, userAgent string) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		userAgent: userAgent,
	}, nil
}

// Fetch downloads rawURL and returns the body. Any non-2xx status is a
// *FetchError carrying the status code.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("%w: %q", errUnsupportedScheme, u.Scheme)}
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	// Headers a desktop browser sends on a top-level navigation
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	// Perform the request
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("failed to fetch URL: %w", err)}
	}
	defer resp.Body.Close()

	// Check for HTTP errors
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return string(body), nil
}
