// Package ingest pulls tender notices from external procurement systems
// and writes normalized records into the store.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	defaultMinDelay   = 500 * time.Millisecond
	defaultMaxDelay   = time.Second
	defaultMaxRetries = 3
	maxBackoff        = 10 * time.Second

	userAgent = "verejne-zakazky/1.0 (+https://github.com/L4Nci/verejne-zakazky)"
)

// Fetcher is a polite HTTP client: it keeps a minimum delay between
// requests to the same deployment and retries transient failures with
// exponential backoff. 4xx responses are not retried.
type Fetcher struct {
	client     *http.Client
	minDelay   time.Duration
	maxDelay   time.Duration
	maxRetries int
	logger     *slog.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewFetcher creates a fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		minDelay:   defaultMinDelay,
		maxDelay:   defaultMaxDelay,
		maxRetries: defaultMaxRetries,
		logger:     logger,
	}
}

// Get performs one GET with throttling and retries and returns the body.
func (f *Fetcher) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target := rawURL
	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
		}
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt)
			f.logger.Debug("retrying fetch", "url", target, "attempt", attempt, "wait", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := f.throttle(ctx); err != nil {
			return nil, err
		}

		body, retryable, err := f.do(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("get %s: %w", target, lastErr)
}

func (f *Fetcher) do(ctx context.Context, target string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "cs,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode >= 500, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	return body, false, nil
}

// throttle sleeps so consecutive requests keep a jittered minimum spacing.
func (f *Fetcher) throttle(ctx context.Context) error {
	f.mu.Lock()
	target := f.minDelay + time.Duration(rand.Int63n(int64(f.maxDelay-f.minDelay)+1))
	wait := target - time.Since(f.lastRequest)
	f.lastRequest = time.Now().Add(wait)
	f.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func backoff(attempt int) time.Duration {
	wait := time.Second << (attempt - 1)
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}
