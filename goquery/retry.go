package goquery

import (
	"context"
	"errors"
	"time"

	"github.com/fwojciec/flatfinder"
)

// DefaultRetryDelays returns the backoff delays for page fetch retries: 1s, 2s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second}
}

// RetryDelays returns n exponential backoff delays starting at 1s.
func RetryDelays(n int) []time.Duration {
	delays := make([]time.Duration, 0, max(n, 0))
	d := time.Second
	for range n {
		delays = append(delays, d)
		d *= 2
	}
	return delays
}

// WithRetryDelays sets the delays between attempts of a failed page fetch.
// Each delay adds one retry; no delays disables retrying.
// Defaults to DefaultRetryDelays().
func WithRetryDelays(delays ...time.Duration) Option {
	return func(f *ListingFetcher) {
		f.retryDelays = delays
	}
}

// fetchWithRetry fetches url, retrying failures after each delay.
// Cancellation and invalid requests are not retried.
func fetchWithRetry(ctx context.Context, fetcher flatfinder.Fetcher, url string, delays []time.Duration) (string, error) {
	maxAttempts := len(delays) + 1 // 1 initial + N retries

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		html, err := fetcher.Fetch(ctx, url)
		if err == nil {
			return html, nil
		}
		lastErr = err

		if attempt >= maxAttempts-1 || !retryable(err) {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}

	return "", lastErr
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return flatfinder.ErrorCode(err) != flatfinder.EINVALID
}
