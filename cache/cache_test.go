package cache

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_BasicOperations(t *testing.T) {
	ctx := context.Background()
	c := New()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "key1", []byte("value1"), time.Minute))

		val, ok := c.Get(ctx, "key1")
		assert.True(t, ok)
		assert.Equal(t, []byte("value1"), val)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		val, ok := c.Get(ctx, "nonexistent")
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "key2", []byte("original"), time.Minute))
		require.NoError(t, c.Set(ctx, "key2", []byte("updated"), time.Minute))

		val, ok := c.Get(ctx, "key2")
		assert.True(t, ok)
		assert.Equal(t, []byte("updated"), val)
	})

	t.Run("HitDoesNotMutate", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "key3", []byte("v"), time.Minute))
		before := c.Size()

		_, ok := c.Get(ctx, "key3")
		assert.True(t, ok)
		assert.Equal(t, before, c.Size())
	})
}

func TestTTLCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := New()

	require.NoError(t, c.Set(ctx, "expiring", []byte("v"), 100*time.Millisecond))

	// Live immediately after Set.
	val, ok := c.Get(ctx, "expiring")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	// Advance the clock past the TTL instead of sleeping.
	c.now = func() time.Time { return time.Now().Add(101 * time.Millisecond) }

	val, ok = c.Get(ctx, "expiring")
	assert.False(t, ok)
	assert.Nil(t, val)

	// The stale read removed the entry; a follow-up Get is still absent.
	assert.Equal(t, 0, c.Size())
	_, ok = c.Get(ctx, "expiring")
	assert.False(t, ok)
}

func TestTTLCache_ExpirationBoundary(t *testing.T) {
	ctx := context.Background()
	c := New()

	base := time.Now()
	c.now = func() time.Time { return base }
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 100*time.Millisecond))

	// Exactly at the TTL the entry is still live.
	c.now = func() time.Time { return base.Add(100 * time.Millisecond) }
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	// One tick past it is not.
	c.now = func() time.Time { return base.Add(100*time.Millisecond + time.Nanosecond) }
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestTTLCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := New()

	t.Run("SingleKey", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "salon:1", []byte("1"), time.Minute))
		require.NoError(t, c.Set(ctx, "salon:2", []byte("2"), time.Minute))

		assert.True(t, c.Invalidate(ctx, "salon:1"))
		assert.False(t, c.Invalidate(ctx, "salon:1")) // already gone

		_, ok := c.Get(ctx, "salon:1")
		assert.False(t, ok)
		_, ok = c.Get(ctx, "salon:2")
		assert.True(t, ok)
	})

	t.Run("Pattern", func(t *testing.T) {
		c.Clear(ctx)
		require.NoError(t, c.Set(ctx, "insights:1:week", []byte("1"), time.Minute))
		require.NoError(t, c.Set(ctx, "insights:1:month", []byte("2"), time.Minute))
		require.NoError(t, c.Set(ctx, "forecast:1", []byte("3"), time.Minute))

		count := c.InvalidatePattern(ctx, regexp.MustCompile(`^insights:`))
		assert.Equal(t, 2, count)

		_, ok := c.Get(ctx, "insights:1:week")
		assert.False(t, ok)
		_, ok = c.Get(ctx, "forecast:1")
		assert.True(t, ok)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
		c.Clear(ctx)
		assert.Equal(t, 0, c.Size())
	})
}

func TestKey_Deterministic(t *testing.T) {
	t.Run("OrderIndependence", func(t *testing.T) {
		a := map[string]any{}
		a["salon_id"] = "s-42"
		a["period"] = "week"
		a["limit"] = 10

		b := map[string]any{}
		b["limit"] = 10
		b["period"] = "week"
		b["salon_id"] = "s-42"

		assert.Equal(t, Key("insights", a), Key("insights", b))
	})

	t.Run("Shape", func(t *testing.T) {
		key := Key("insights", map[string]any{"salon_id": "s-1", "period": "week"})
		assert.Equal(t, `insights:period="week":salon_id="s-1"`, key)
	})

	t.Run("EmptyParams", func(t *testing.T) {
		assert.Equal(t, "churn", Key("churn", nil))
	})

	t.Run("DistinctValuesDistinctKeys", func(t *testing.T) {
		a := Key("insights", map[string]any{"period": "week"})
		b := Key("insights", map[string]any{"period": "month"})
		assert.NotEqual(t, a, b)
	})
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := New()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Set(ctx, Key("k", map[string]any{"n": n, "j": j}), []byte("v"), time.Minute)
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get(ctx, Key("k", map[string]any{"n": n, "j": j}))
			}
		}(i)
	}
	wg.Wait()
}
