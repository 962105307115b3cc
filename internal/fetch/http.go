package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Transport is the shared HTTP client for archive and raw-file fetches.
// Transient failures (connection errors, 5xx, 429) are retried with
// exponential backoff; other HTTP errors are permanent.
type Transport struct {
	http       *http.Client
	maxRetries uint64
	userAgent  string
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		t.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) TransportOption {
	return func(t *Transport) {
		t.http = hc
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n uint64) TransportOption {
	return func(t *Transport) {
		t.maxRetries = n
	}
}

// NewTransport creates a Transport with a 5 minute timeout and 3 retries.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		http: &http.Client{
			Timeout: 5 * time.Minute,
		},
		maxRetries: 3,
		userAgent:  "pindiff",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get downloads url and returns the response body.
func (t *Transport) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", t.userAgent)

		resp, err := t.http.Do(req)
		if err != nil {
			return err // connection-level, retryable
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("GET %s: %s", url, resp.Status)
		default:
			return backoff.Permanent(fmt.Errorf("GET %s: %s", url, resp.Status))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), t.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}
