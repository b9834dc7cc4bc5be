// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
	"github.com/JakeFAU/council-jobs-feed/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Politeness gates each request to a host.
type Politeness interface {
	Wait(ctx context.Context, rawURL string) error
}

// Fetcher implements crawler.Fetcher using the Colly collector. Every attempt
// waits on the politeness limiter and then performs exactly one HTTP GET.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	politeness    Politeness
	retry         *RetryPolicy
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type attemptResult struct {
	body       string
	statusCode int
	err        error
}

// New builds a Fetcher. A nil politeness applies no delay.
func New(cfg Config, politeness Politeness, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.ParseHTTPErrorResponse = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		politeness:    politeness,
		retry:         NewRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		logger:        logger,
	}
}

// Fetch retrieves rawURL and returns its body. Any failure is logged and
// returned as a *crawler.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	var lastErr *crawler.FetchError
	for attempt := 0; ; attempt++ {
		body, err := f.attempt(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !f.retry.ShouldRetry(err, attempt+1) {
			break
		}
		f.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if sleepErr := sleepWithContext(ctx, f.retry.Backoff(attempt)); sleepErr != nil {
			break
		}
	}
	// Callers decide whether a failure matters and log it with their context.
	f.logger.Debug("fetch failed",
		zap.String("url", rawURL),
		zap.Int("status", lastErr.StatusCode),
		zap.Error(lastErr.Err),
	)
	return "", lastErr
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string) (string, *crawler.FetchError) {
	if f.politeness != nil {
		if err := f.politeness.Wait(ctx, rawURL); err != nil {
			return "", &crawler.FetchError{URL: rawURL, Err: err}
		}
	}

	collector := f.baseCollector.Clone()
	var result attemptResult
	f.configureCollectorHooks(collector, &result)

	if err := f.runCollector(ctx, collector, rawURL, &result); err != nil {
		metrics.ObserveFetch(rawURL, "error", 0)
		return "", &crawler.FetchError{URL: rawURL, StatusCode: result.statusCode, Err: err}
	}
	if result.statusCode < http.StatusOK || result.statusCode >= http.StatusMultipleChoices {
		metrics.ObserveFetch(rawURL, "status", len(result.body))
		return "", &crawler.FetchError{
			URL:        rawURL,
			StatusCode: result.statusCode,
			Err:        errors.New(http.StatusText(result.statusCode)),
		}
	}
	metrics.ObserveFetch(rawURL, "ok", len(result.body))
	return result.body, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *attemptResult) {
	hooks.OnResponse(func(r *colly.Response) {
		result.statusCode = r.StatusCode
		result.body = string(r.Body)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.statusCode = r.StatusCode
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		result.err = err
	})
}

// runCollector bounds the visit by the context and the request timeout so a
// stalled server cannot hold the run open.
func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, result *attemptResult) error {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout+time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if result.err != nil {
			return fmt.Errorf("colly response failed: %w", result.err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
