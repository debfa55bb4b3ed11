package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/scroll-export/pkg/client"
	"github.com/rs/zerolog"
)

// maxErrorBody bounds how much of a failed response body ends up in errors and logs.
const maxErrorBody = 512

// BatchFetcher sends one page request and retries it until a well-formed
// page arrives or the retry policy is exhausted.
type BatchFetcher struct {
	sender client.Sender
	policy RetryPolicy
	sleep  SleepFunc
	logger zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(sender client.Sender, policy RetryPolicy, logger zerolog.Logger) *BatchFetcher {
	return &BatchFetcher{
		sender: sender,
		policy: policy.normalize(),
		sleep:  sleepContext,
		logger: logger.With().Str("component", "batch-fetcher").Logger(),
	}
}

// SetSleep replaces the backoff sleep (for testing).
func (bf *BatchFetcher) SetSleep(sleep SleepFunc) {
	bf.sleep = sleep
}

// Policy returns the effective retry policy.
func (bf *BatchFetcher) Policy() RetryPolicy {
	return bf.policy
}

// Fetch sends req until a page is accepted. Transport failures, non-200
// statuses and malformed bodies are all retried the same way. The returned
// error is a *FetchError after exhaustion, or wraps ErrContextCancelled
// when ctx ends first.
func (bf *BatchFetcher) Fetch(ctx context.Context, req client.Request) (*Batch, error) {
	return bf.fetch(ctx, req, nil)
}

// fetch is Fetch with a callback for scroll ids carried by rejected
// responses, so the caller can release them.
func (bf *BatchFetcher) fetch(ctx context.Context, req client.Request, orphan func(scrollID string)) (*Batch, error) {
	rc := bf.policy.NewRetryContext()
	start := time.Now()

	var lastErr error
	for {
		batch, err := bf.attempt(ctx, req)
		if err == nil {
			if rc.Attempt > 1 {
				bf.logger.Info().
					Str("operation", req.Operation).
					Int("attempt", rc.Attempt).
					Dur("duration", time.Since(start)).
					Msg("Request succeeded after retry")
			}
			return batch, nil
		}

		lastErr = err

		var malformed *MalformedResponseError
		if orphan != nil && errors.As(err, &malformed) && malformed.ScrollID != "" {
			orphan(malformed.ScrollID)
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		kind := KindOf(err)

		// If this was the last attempt, don't wait
		if rc.Exhausted() {
			break
		}

		retriesTotal.WithLabelValues(string(kind)).Inc()
		retryBackoffSeconds.Observe(rc.Delay.Seconds())

		bf.logger.Warn().
			Err(err).
			Str("operation", req.Operation).
			Str("error_kind", string(kind)).
			Int("attempt", rc.Attempt).
			Int("max_attempts", rc.MaxAttempts).
			Dur("backoff", rc.Delay).
			Msg("Retrying request after backoff")

		if err := bf.sleep(ctx, rc.Delay); err != nil {
			bf.logger.Warn().
				Str("operation", req.Operation).
				Int("attempt", rc.Attempt).
				Msg("Context cancelled during retry backoff")
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		rc.Next()
	}

	retryExhaustedTotal.WithLabelValues(req.Operation).Inc()
	bf.logger.Error().
		Err(lastErr).
		Str("operation", req.Operation).
		Int("max_attempts", rc.MaxAttempts).
		Msg("Retry attempts exhausted")

	return nil, &FetchError{
		Operation: req.Operation,
		Attempts:  rc.Attempt,
		Last:      lastErr,
	}
}

// attempt performs a single request and judges its outcome.
func (bf *BatchFetcher) attempt(ctx context.Context, req client.Request) (*Batch, error) {
	resp, err := bf.sender.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(resp.Body, maxErrorBody),
		}
	}

	return decodeBatch(resp.Body)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
