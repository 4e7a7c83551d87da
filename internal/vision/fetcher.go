package vision

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// FetchInfo is the payload metadata used by the tampering heuristics.
type FetchInfo struct {
	ContentType   string
	ContentLength int64
}

// Fetcher checks image existence (HEAD) and inspects payloads (GET).
type Fetcher interface {
	Head(ctx context.Context, url string) (*FetchInfo, error)
	Get(ctx context.Context, url string) (*FetchInfo, error)
}

// HTTPFetcher fetches images over HTTP with retries and a bounded timeout,
// so a hung image store cannot stall verification indefinitely.
type HTTPFetcher struct {
	client *retryablehttp.Client
}

// NewHTTPFetcher creates an HTTPFetcher. A zero timeout defaults to 10s.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := retryablehttp.NewClient()
	c.Logger = log.New(io.Discard, "", 0)
	c.RetryMax = 2
	c.HTTPClient.Timeout = timeout
	return &HTTPFetcher{client: c}
}

// Head performs the existence check and returns declared metadata.
func (f *HTTPFetcher) Head(ctx context.Context, url string) (*FetchInfo, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return &FetchInfo{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

// Get downloads the payload and reports its actual size, which may differ
// from the declared Content-Length on tampered uploads.
func (f *HTTPFetcher) Get(ctx context.Context, url string) (*FetchInfo, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, err
	}
	return &FetchInfo{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: n,
	}, nil
}

// StatusError reports a non-2xx response from the image store.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}
