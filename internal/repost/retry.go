package repost

import (
	"math/rand"
	"time"
)

// retryState tracks bounded exponential backoff for one target. Keeping the
// attempt count and next delay in one place makes the bounded-retry
// guarantee easy to follow: Exhausted is checked after every failed attempt,
// and Backoff is consulted only after a retryable failure.
type retryState struct {
	attempts    int
	maxAttempts int
	delay       time.Duration
	maxDelay    time.Duration
}

func newRetryState(maxAttempts int, baseDelay, maxDelay time.Duration) *retryState {
	return &retryState{
		maxAttempts: maxAttempts,
		delay:       baseDelay,
		maxDelay:    maxDelay,
	}
}

// Attempt records the start of an attempt and returns its number (1-based).
func (r *retryState) Attempt() int {
	r.attempts++
	return r.attempts
}

// Exhausted reports whether no further attempts are allowed.
func (r *retryState) Exhausted() bool {
	return r.attempts >= r.maxAttempts
}

// Backoff returns the jittered delay to wait before the next attempt and
// advances the schedule.
func (r *retryState) Backoff() time.Duration {
	d := r.delay

	r.delay *= 2
	if r.delay > r.maxDelay {
		r.delay = r.maxDelay
	}

	// +-10% jitter so parallel instances don't sync up
	jitter := float64(d) * 0.1 * (rand.Float64()*2 - 1)
	return d + time.Duration(jitter)
}
