package sdk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// retryPolicy decides when a request may be sent again.
type retryPolicy int

const (
	// retryTransient resends on network errors and 502/503/504.
	retryTransient retryPolicy = iota

	// retryUnsent resends only when no connection was made, so a request the
	// server may have applied is never applied twice.
	retryUnsent
)

// retryable reports whether a response status is worth retrying. 500 is a
// definite answer from the operator and is returned as is.
func retryable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// notSent reports whether err happened before the request left the client.
func notSent(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry logic.
// Under retryTransient it retries on network errors and 502/503/504. Under
// retryUnsent it retries dial failures only and returns every response as is.
// newRequest is called for every attempt so the body is never reused.
func (c *Client) doRequestWithRetry(ctx context.Context, policy retryPolicy, newRequest func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt - 1)):
			}
		}

		req, err := newRequest()
		if err != nil {
			return nil, err
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if policy == retryUnsent && !notSent(err) {
				return nil, fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
			}
			lastErr = err
			continue
		}

		if policy == retryUnsent || !retryable(resp.StatusCode) {
			return resp, nil
		}
		drainAndCloseBody(resp)
		lastErr = fmt.Errorf("%w: status code %d", ErrServerError, resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.RetryAttempts+1, lastErr)
}

// requestFactory returns a function building a fresh request for each attempt.
func (c *Client) requestFactory(ctx context.Context, method, url string, body []byte, authType AuthType) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if err := c.addAuthHeaders(req, authType); err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.UserAgent)
		return req, nil
	}
}

// calculateBackoff calculates the backoff duration for a retry attempt.
// It uses exponential backoff with full jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.RetryWaitMin) * math.Pow(2, float64(attempt))

	if backoff > float64(c.RetryWaitMax) {
		backoff = float64(c.RetryWaitMax)
	}

	jitter := rand.Float64() * backoff

	return time.Duration(jitter)
}

// drainAndCloseBody reads and closes the response body to ensure connection reuse.
func drainAndCloseBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
