package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/tessara/gemini-assistant/internal/provider/models"
)

// Retry policy defaults, matching the provider's transient-exhaustion
// behavior: up to 3 attempts total, base delay doubled per attempt, plus a
// small random jitter.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	maxJitter          = 100 * time.Millisecond
)

// Retrier wraps generation calls with bounded exponential backoff. Only
// provider errors marked retryable (resource exhaustion, transient
// unavailability) are retried; everything else propagates immediately.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger

	// sleep is replaceable in tests. It must respect ctx cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a Retrier with the given bounds. Zero values select
// the defaults.
func NewRetrier(maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// Do invokes fn until it succeeds, fails terminally, or the attempt budget
// is spent. Exhausting retries yields a terminal API error, never a silent
// empty result.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) (*models.GenerateResponse, error)) (*models.GenerateResponse, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		if !models.IsRetryable(err) {
			return nil, err
		}
		lastErr = err

		if attempt == r.maxAttempts-1 {
			break
		}

		delay := r.baseDelay*(1<<attempt) + time.Duration(rand.Int63n(int64(maxJitter)))
		r.logger.Warn("transient provider error, backing off",
			"attempt", attempt+1,
			"max_attempts", r.maxAttempts,
			"delay", delay,
			"error", err)

		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("maximum retry attempts (%d) reached: %w", r.maxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
