package meter

import (
	"sync"
	"time"
)

// RateLimiter caps evaluations per connection over a sliding window.
//
// It keeps the last limit admission times in a ring; an event is admitted when
// the oldest of them has left the window.
type RateLimiter struct {
	mu     sync.Mutex
	ring   []time.Time
	next   int
	filled bool
	window time.Duration
}

// NewRateLimiter returns a limiter admitting limit events per window. Invalid
// inputs fall back to the meter defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{ring: make([]time.Time, limit), window: window}
}

// Allow admits an event at now. When it refuses, retryAfter is how long until
// the oldest admitted event leaves the window.
func (r *RateLimiter) Allow(now time.Time) (ok bool, retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filled {
		if expires := r.ring[r.next].Add(r.window); now.Before(expires) {
			return false, expires.Sub(now)
		}
	}

	r.ring[r.next] = now
	r.next++
	if r.next == len(r.ring) {
		r.next = 0
		r.filled = true
	}
	return true, 0
}
