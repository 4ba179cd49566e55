package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aniladanir/weather-service/internal/cache"
	"github.com/benbjohnson/clock"
	"github.com/samber/mo"
)

type entry struct {
	value     any
	expiresAt time.Time // zero => no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Cache is an in-memory cache that evicts expired keys lazily on read.
type Cache struct {
	mtx   sync.Mutex
	items map[string]entry
	clock clock.Clock
}

var _ cache.Cache = (*Cache)(nil)

type Option func(*Cache)

// WithClock replaces the wall clock used to compute and check expiry
func WithClock(c clock.Clock) Option {
	return func(mc *Cache) {
		mc.clock = c
	}
}

// New creates an empty in-memory cache
func New(opts ...Option) *Cache {
	c := &Cache{
		items: make(map[string]entry),
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored for key. An entry whose expiry has been reached
// is removed and reported as absent.
func (c *Cache) Get(_ context.Context, key string) (mo.Option[any], error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	e, ok := c.items[key]
	if !ok {
		return mo.None[any](), nil
	}
	if e.expired(c.clock.Now()) {
		delete(c.items, key)
		return mo.None[any](), nil
	}

	return mo.Some(e.value), nil
}

// Set stores val for key. Calling Set with cache.NoTTL makes the key persistent
// even if it previously had an expiry.
func (c *Cache) Set(_ context.Context, key string, val any, ttl time.Duration) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.items[key] = entry{
		value:     val,
		expiresAt: c.expiresAt(ttl),
	}
	return nil
}

// SetTTL replaces the expiry of a live key. Missing and already expired keys
// are left absent.
func (c *Cache) SetTTL(_ context.Context, key string, ttl time.Duration) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil
	}
	if e.expired(c.clock.Now()) {
		delete(c.items, key)
		return nil
	}
	e.expiresAt = c.expiresAt(ttl)
	c.items[key] = e
	return nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	delete(c.items, key)
	return nil
}

// Len returns the number of stored entries, including expired ones that were not read yet
func (c *Cache) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return len(c.items)
}

func (c *Cache) expiresAt(ttl time.Duration) time.Time {
	if ttl == cache.NoTTL {
		return time.Time{}
	}
	return c.clock.Now().Add(ttl)
}
