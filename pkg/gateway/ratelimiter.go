package gateway

import (
	"sync"
	"time"
)

// DefaultCommandsPerMinute bounds command frames per connection.
const DefaultCommandsPerMinute = 60

// CommandRateLimiter is a sliding one-minute window over command frames.
// Control frames (stop, skip, clear) are never limited.
type CommandRateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	accepted []time.Time
	now      func() time.Time
}

// NewCommandRateLimiter creates a limiter. A non-positive limit disables it.
func NewCommandRateLimiter(perMinute int) *CommandRateLimiter {
	return &CommandRateLimiter{
		limit:  perMinute,
		window: time.Minute,
		now:    time.Now,
	}
}

// Allow records a command and reports whether it fits in the window.
func (r *CommandRateLimiter) Allow() bool {
	if r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)
	if len(r.accepted) >= r.limit {
		return false
	}
	r.accepted = append(r.accepted, now)
	return true
}

// Count returns the commands accepted in the current window.
func (r *CommandRateLimiter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now())
	return len(r.accepted)
}

func (r *CommandRateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	kept := r.accepted[:0]
	for _, at := range r.accepted {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	r.accepted = kept
}
