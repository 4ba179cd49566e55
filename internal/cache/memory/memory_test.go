package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aniladanir/weather-service/internal/cache"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGet(t *testing.T, c *Cache, key string) (any, bool) {
	t.Helper()
	opt, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	return opt.Get()
}

func TestSetWithoutTTL(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"string", "key", "value"},
		{"nil", "key", nil},
		{"int", "key", 42},
		{"float", "key", 3.14},
		{"bool", "key", true},
		{"float slice", "key", []float64{3.14, 2.79}},
		{"mixed slice", "key", []any{3.14, 42}},
		{"map", "key", map[string]string{"foo": "bar"}},
		{"mixed map", "key", map[string]any{"foo": "bar", "baz": 3.14}},
		{"empty key", "", "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := clock.NewMock()
			c := New(WithClock(mock))

			require.NoError(t, c.Set(ctx, tt.key, tt.value, cache.NoTTL))

			val, ok := mustGet(t, c, tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.value, val)

			// no spontaneous expiry
			mock.Add(24 * 365 * time.Hour)
			val, ok = mustGet(t, c, tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.value, val)
		})
	}
}

func TestGetMissingKey(t *testing.T) {
	c := New()

	_, ok := mustGet(t, c, "nonexistent")
	assert.False(t, ok)
}

func TestSetWithTTL(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	c := New(WithClock(mock))

	require.NoError(t, c.Set(ctx, "key1", "value1", time.Second))

	val, ok := mustGet(t, c, "key1")
	require.True(t, ok)
	assert.Equal(t, "value1", val)

	mock.Add(999 * time.Millisecond)
	_, ok = mustGet(t, c, "key1")
	assert.True(t, ok)

	t.Run("expiry is inclusive of the deadline", func(t *testing.T) {
		mock.Add(time.Millisecond)
		_, ok := mustGet(t, c, "key1")
		assert.False(t, ok)
	})

	t.Run("expired entry is purged on read", func(t *testing.T) {
		assert.Equal(t, 0, c.Len())
	})
}

func TestSetWithTTLRealClock(t *testing.T) {
	ctx := context.Background()
	c := New()

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))

	val, ok := mustGet(t, c, "k")
	require.True(t, ok)
	assert.Equal(t, "v", val)

	time.Sleep(1100 * time.Millisecond)

	_, ok = mustGet(t, c, "k")
	assert.False(t, ok)
}

func TestSetTTL(t *testing.T) {
	ctx := context.Background()

	t.Run("adds expiry to persistent key", func(t *testing.T) {
		mock := clock.NewMock()
		c := New(WithClock(mock))

		require.NoError(t, c.Set(ctx, "key1", "value1", cache.NoTTL))
		require.NoError(t, c.SetTTL(ctx, "key1", time.Second))

		val, ok := mustGet(t, c, "key1")
		require.True(t, ok)
		assert.Equal(t, "value1", val)

		mock.Add(1100 * time.Millisecond)
		_, ok = mustGet(t, c, "key1")
		assert.False(t, ok)
	})

	t.Run("zero ttl removes expiry", func(t *testing.T) {
		mock := clock.NewMock()
		c := New(WithClock(mock))

		require.NoError(t, c.Set(ctx, "key1", "value1", time.Second))
		require.NoError(t, c.SetTTL(ctx, "key1", cache.NoTTL))

		mock.Add(time.Hour)
		val, ok := mustGet(t, c, "key1")
		require.True(t, ok)
		assert.Equal(t, "value1", val)
	})

	t.Run("replaces previous expiry", func(t *testing.T) {
		mock := clock.NewMock()
		c := New(WithClock(mock))

		require.NoError(t, c.Set(ctx, "key1", "value1", time.Second))
		require.NoError(t, c.SetTTL(ctx, "key1", 10*time.Second))

		mock.Add(5 * time.Second)
		_, ok := mustGet(t, c, "key1")
		assert.True(t, ok)

		mock.Add(5 * time.Second)
		_, ok = mustGet(t, c, "key1")
		assert.False(t, ok)
	})

	t.Run("expired key stays absent", func(t *testing.T) {
		mock := clock.NewMock()
		c := New(WithClock(mock))

		require.NoError(t, c.Set(ctx, "k", "v", time.Second))
		mock.Add(2 * time.Second)

		for _, ttl := range []time.Duration{cache.NoTTL, time.Hour} {
			require.NoError(t, c.SetTTL(ctx, "k", ttl))

			_, ok := mustGet(t, c, "k")
			assert.False(t, ok, "ttl %s", ttl)
		}
		assert.Equal(t, 0, c.Len())
	})

	t.Run("missing key is a no-op", func(t *testing.T) {
		mock := clock.NewMock()
		c := New(WithClock(mock))

		require.NoError(t, c.SetTTL(ctx, "ghost", time.Second))
		assert.Equal(t, 0, c.Len())

		require.NoError(t, c.Set(ctx, "ghost", "value", cache.NoTTL))
		mock.Add(time.Minute)
		_, ok := mustGet(t, c, "ghost")
		assert.True(t, ok)
	})
}

func TestSetWithoutTTLClearsExpiry(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	c := New(WithClock(mock))

	require.NoError(t, c.Set(ctx, "key1", "old", time.Second))
	require.NoError(t, c.Set(ctx, "key1", "new", cache.NoTTL))

	mock.Add(time.Hour)
	val, ok := mustGet(t, c, "key1")
	require.True(t, ok)
	assert.Equal(t, "new", val)
}

func TestNegativeTTLExpiresImmediately(t *testing.T) {
	ctx := context.Background()
	c := New(WithClock(clock.NewMock()))

	require.NoError(t, c.Set(ctx, "key1", "value1", -time.Second))

	_, ok := mustGet(t, c, "key1")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := New()

	require.NoError(t, c.Set(ctx, "key1", "value1", cache.NoTTL))
	require.NoError(t, c.Set(ctx, "key2", "value2", cache.NoTTL))
	require.NoError(t, c.Delete(ctx, "key1"))

	_, ok := mustGet(t, c, "key1")
	assert.False(t, ok)

	t.Run("deleting missing key leaves store unchanged", func(t *testing.T) {
		require.NoError(t, c.Delete(ctx, "key1"))
		require.NoError(t, c.Delete(ctx, "never-set"))

		assert.Equal(t, 1, c.Len())
		val, ok := mustGet(t, c, "key2")
		require.True(t, ok)
		assert.Equal(t, "value2", val)
	})
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := New()

	const (
		workers = 32
		keys    = 200
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < keys; i++ {
				key := fmt.Sprintf("w%d:k%d", w, i)
				_ = c.Set(ctx, key, i, cache.NoTTL)
				_, _ = c.Get(ctx, key)
				if i%2 == 1 {
					_ = c.Delete(ctx, key)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*keys/2, c.Len())
	for w := 0; w < workers; w++ {
		for i := 0; i < keys; i++ {
			val, ok := mustGet(t, c, fmt.Sprintf("w%d:k%d", w, i))
			if i%2 == 1 {
				assert.False(t, ok)
				continue
			}
			require.True(t, ok)
			assert.Equal(t, i, val)
		}
	}
}
