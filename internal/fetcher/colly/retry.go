package collyfetcher

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
)

const (
	defaultBackoffInitial = 250 * time.Millisecond
	defaultBackoffMax     = 2 * time.Second
)

// RetryPolicy retries transient fetch failures with jittered exponential
// backoff. A zero value never retries.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryPolicy builds a policy allowing maxRetries extra attempts.
func NewRetryPolicy(maxRetries int, base, maxDelay time.Duration) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if base <= 0 {
		base = defaultBackoffInitial
	}
	if maxDelay < base {
		maxDelay = max(defaultBackoffMax, base)
	}
	return &RetryPolicy{
		maxAttempts: maxRetries + 1,
		baseDelay:   base,
		maxDelay:    maxDelay,
	}
}

// ShouldRetry reports whether the attempt-th failed attempt may be repeated.
// Server errors, 429 and network timeouts are retried. Client errors and
// context cancellation are not.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if p == nil || err == nil || attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fetchErr *crawler.FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		return fetchErr.StatusCode == http.StatusTooManyRequests ||
			fetchErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Backoff returns the wait before the attempt following attempt (zero based).
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
