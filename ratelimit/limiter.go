// Package ratelimit provides a sliding-window request limiter for
// outbound calls to the AI backend. It is client-side best effort: it
// keeps the client from flooding the network but offers no protection
// against the server's own limits, so a 429 remains a normal error
// path for the caller.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter counts requests inside a trailing window. Timestamps older
// than the window are pruned on every check, so the tracked sequence
// never grows past what actually happened within the last window.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a limiter allowing at most limit requests per window.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether a request may be dispatched right now.
// It prunes expired timestamps but records nothing: callers that go on
// to dispatch must call Record themselves.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	return len(l.stamps) < l.limit
}

// Record appends the current timestamp. Call it only after Allow
// returned true and the request was actually dispatched.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	l.stamps = append(l.stamps, now)
}

// Remaining returns how many requests may still be dispatched within
// the current window. Never negative.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	if n := l.limit - len(l.stamps); n > 0 {
		return n
	}
	return 0
}

// ResetAfter returns the time until the oldest tracked request falls
// out of the window, or 0 when nothing is tracked. This is a hint for
// backoff or display, not an enforced wait.
func (l *Limiter) ResetAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if len(l.stamps) == 0 {
		return 0
	}
	d := l.stamps[0].Add(l.window).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Wait blocks until a slot frees up or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}
		d := l.ResetAfter()
		if d <= 0 {
			d = time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

// prune drops timestamps older than the window. Must be called with
// the lock held.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
