// Package ratelimit enforces a per-host politeness interval between requests.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/council-jobs-feed/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// Interval is the minimum gap before each request to the same host.
	Interval time.Duration
}

// Limiter manages per-host limits. Each host gets a token bucket of size one
// that starts empty, so even the first request to a host waits Interval.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// New creates a new Limiter. A non-positive interval disables waiting.
func New(cfg Config) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		interval: cfg.Interval,
	}
}

// Wait blocks until a request to rawURL's host is allowed, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l.interval <= 0 {
		return nil
	}
	host := metrics.SanitizeHost(rawURL)

	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(l.interval), 1)
		limiter.Allow()
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	metrics.ObserveRateLimitDelay(host, time.Since(start))
	return nil
}
