package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock drives a Limiter through simulated time.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }
func (c *fixedClock) now() time.Time          { return c.t }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fixedClock) {
	clock := &fixedClock{t: time.Now()}
	l := New(limit, window)
	l.now = clock.now
	return l, clock
}

func TestLimiter_Fresh(t *testing.T) {
	l, _ := newTestLimiter(5, time.Second)

	assert.True(t, l.Allow())
	assert.Equal(t, 5, l.Remaining())
	assert.Equal(t, time.Duration(0), l.ResetAfter())
}

func TestLimiter_WindowScenario(t *testing.T) {
	// limit=2, window=1s: two records deny the third call until the
	// window slides past the oldest request.
	l, clock := newTestLimiter(2, time.Second)

	require.True(t, l.Allow())
	l.Record()
	require.True(t, l.Allow())
	l.Record()

	assert.False(t, l.Allow())
	assert.Equal(t, 0, l.Remaining())

	clock.advance(1001 * time.Millisecond)

	assert.True(t, l.Allow())
	assert.Equal(t, 2, l.Remaining())
}

func TestLimiter_SlidingPrune(t *testing.T) {
	l, clock := newTestLimiter(3, time.Second)

	l.Record()
	clock.advance(400 * time.Millisecond)
	l.Record()
	clock.advance(400 * time.Millisecond)
	l.Record()

	// All three are still inside the window.
	assert.False(t, l.Allow())

	// 300ms later the first record (age 1.1s) has slid out.
	clock.advance(300 * time.Millisecond)
	assert.True(t, l.Allow())
	assert.Equal(t, 1, l.Remaining())
}

func TestLimiter_ResetAfter(t *testing.T) {
	l, clock := newTestLimiter(1, time.Second)

	l.Record()
	clock.advance(300 * time.Millisecond)

	assert.Equal(t, 700*time.Millisecond, l.ResetAfter())

	clock.advance(800 * time.Millisecond)
	assert.Equal(t, time.Duration(0), l.ResetAfter())
}

func TestLimiter_RemainingNeverNegative(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)

	// Record is caller-driven, so it can overshoot the limit; Remaining
	// must still floor at zero.
	l.Record()
	l.Record()
	l.Record()

	assert.Equal(t, 0, l.Remaining())
	assert.False(t, l.Allow())
}

func TestLimiter_Wait(t *testing.T) {
	t.Run("ImmediateWhenFree", func(t *testing.T) {
		l := New(1, time.Minute)
		require.NoError(t, l.Wait(context.Background()))
	})

	t.Run("ContextCancel", func(t *testing.T) {
		l := New(1, time.Minute)
		l.Record()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := l.Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("UnblocksWhenWindowSlides", func(t *testing.T) {
		l := New(1, 30*time.Millisecond)
		l.Record()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		require.NoError(t, l.Wait(ctx))
	})
}

func TestLimiter_Defaults(t *testing.T) {
	l := New(0, 0)
	assert.True(t, l.Allow())
	assert.Equal(t, 1, l.Remaining())
}
