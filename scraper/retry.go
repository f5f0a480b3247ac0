package scraper

import (
	"context"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/config"
)

// RetryPolicy decides whether and when a failed request is retried.
// It is shared by every source; no source carries its own retry loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// NewRetryPolicy builds the policy described by cfg: MaxRetries extra
// attempts on top of the first, exponential backoff capped at RetryBackoffMax.
func NewRetryPolicy(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxRetries + 1,
		BaseDelay:   cfg.RetryBackoff,
		MaxDelay:    cfg.RetryBackoffMax,
		Retryable:   IsTransient,
	}
}

// ShouldRetry reports whether another attempt follows attempt (1-based).
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	return p.IsRetryable(err)
}

// IsRetryable applies the policy's predicate, IsTransient by default.
func (p RetryPolicy) IsRetryable(err error) bool {
	if p.Retryable == nil {
		return IsTransient(err)
	}
	return p.Retryable(err)
}

// Backoff returns the delay before the attempt following attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := p.MaxDelay; max > 0 && (delay > max || delay <= 0) {
		delay = max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
