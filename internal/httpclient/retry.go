package httpclient

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy controls when DoWithRetry retries after a response. The retry
// is bounded: at most one extra attempt, so a flapping source cannot stall a
// whole refresh cycle.
type RetryPolicy struct {
	// Retry429: on 429 Too Many Requests, wait Retry-After (capped at Max429Wait) and retry once.
	Retry429   bool
	Max429Wait time.Duration
	// Retry5xx: on 5xx, wait Backoff5xx and retry once.
	Retry5xx   bool
	Backoff5xx time.Duration
	// RetryTransport: on a transport error (connect failure, reset,
	// timeout), wait TransportBackoff and retry once.
	RetryTransport   bool
	TransportBackoff time.Duration
}

// DefaultRetryPolicy retries 429 (cap 60s), 5xx (1s backoff) and transport
// errors (1s backoff).
var DefaultRetryPolicy = RetryPolicy{
	Retry429:         true,
	Max429Wait:       60 * time.Second,
	Retry5xx:         true,
	Backoff5xx:       1 * time.Second,
	RetryTransport:   true,
	TransportBackoff: 1 * time.Second,
}

// DoWithRetry performs req and on a transport error or 429/5xx response
// (when policy allows) waits and retries once. Other 4xx are never retried.
// Caller must close resp.Body when err == nil.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	resp, err := client.Do(req)
	if err != nil {
		if !policy.RetryTransport || ctx.Err() != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.TransportBackoff):
		}
		return redoRequest(ctx, client, req)
	}
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return resp, nil
	}
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return resp, nil
	}
	var wait time.Duration
	switch {
	case code == http.StatusTooManyRequests && policy.Retry429:
		wait = parseRetryAfter(resp.Header.Get("Retry-After"), policy.Max429Wait)
	case code >= 500 && policy.Retry5xx:
		wait = policy.Backoff5xx
	default:
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}
	return redoRequest(ctx, client, req)
}

// redoRequest replays req as a fresh request: the original body (if any) was
// already consumed by the first attempt.
func redoRequest(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	req2, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Header {
		req2.Header[k] = v
	}
	return client.Do(req2)
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); returns duration capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1 * time.Second
	}
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d := time.Duration(sec) * time.Second
		if d > max {
			return max
		}
		return d
	}
	t, err := time.Parse(time.RFC1123, s)
	if err != nil {
		return 1 * time.Second
	}
	until := time.Until(t)
	if until <= 0 {
		return 0
	}
	if until > max {
		return max
	}
	return until
}
