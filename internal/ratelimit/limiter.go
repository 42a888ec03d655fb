// Package ratelimit enforces a local request budget and bounded retry with
// exponential backoff for transient provider errors.
//
// The limiter state is per-instance and in-process: when multiple workers
// run concurrently each enforces its own independent budget. A shared
// cross-process budget is out of scope.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is returned when the local request budget is exhausted,
// before any network call is attempted.
var ErrRateLimited = errors.New("request rate limit exceeded, try again later")

// Default budget: conservative cap independent of provider-reported limits.
const (
	DefaultMaxRequests = 10
	DefaultWindow      = time.Minute
)

// Limiter enforces a sliding-window request budget.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	issued []time.Time
}

// NewLimiter creates a limiter allowing max requests per window. Zero values
// select the defaults.
func NewLimiter(max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Allow records one request against the budget, or fails fast with
// ErrRateLimited when the budget for the current window is spent.
func (l *Limiter) Allow() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// Drop requests that have slid out of the window.
	kept := l.issued[:0]
	for _, t := range l.issued {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.issued = kept

	if len(l.issued) >= l.max {
		return fmt.Errorf("%w (%d requests in the last %s)", ErrRateLimited, len(l.issued), l.window)
	}

	l.issued = append(l.issued, now)
	return nil
}
