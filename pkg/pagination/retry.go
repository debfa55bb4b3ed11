package pagination

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scroll_export_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"error_kind"})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scroll_export_retry_backoff_seconds",
		Help:    "Backoff duration slept before a retry",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
	})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scroll_export_retry_exhausted_total",
		Help: "Total number of requests that exhausted their retry attempts",
	}, []string{"operation"})
)

// RetryPolicy holds the configuration for retry logic.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// BaseDelay is the wait after the first failed attempt.
	BaseDelay time.Duration

	// MaxBackoff caps the delay. Zero means uncapped.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryPolicy returns the default retry policy: three attempts,
// waiting 2s then 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = 2.0
	}
	return p
}

// RetryContext is the per-request retry state. A fresh one is created for
// every fetch and dropped when the fetch returns.
type RetryContext struct {
	Attempt     int
	Delay       time.Duration
	MaxAttempts int

	policy RetryPolicy
}

// NewRetryContext starts at attempt 1 with the policy's base delay.
func (p RetryPolicy) NewRetryContext() *RetryContext {
	p = p.normalize()
	return &RetryContext{
		Attempt:     1,
		Delay:       p.BaseDelay,
		MaxAttempts: p.MaxAttempts,
		policy:      p,
	}
}

// Exhausted reports whether the current attempt was the last one allowed.
func (r *RetryContext) Exhausted() bool {
	return r.Attempt >= r.MaxAttempts
}

// Next moves to the following attempt and grows the delay.
func (r *RetryContext) Next() {
	r.Attempt++
	r.Delay = time.Duration(float64(r.Delay) * r.policy.BackoffMultiplier)
	if r.policy.MaxBackoff > 0 && r.Delay > r.policy.MaxBackoff {
		r.Delay = r.policy.MaxBackoff
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the default SleepFunc.
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
