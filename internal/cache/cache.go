package cache

import (
	"context"
	"time"

	"github.com/samber/mo"
)

// NoTTL marks an entry that never expires. Passing it to Set or SetTTL clears
// any expiry previously assigned to the key.
const NoTTL time.Duration = 0

// Cache is a key-value store with optional per-key expiry.
// Absence of a key is reported through the returned option, never as an error.
type Cache interface {
	Get(ctx context.Context, key string) (mo.Option[any], error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	SetTTL(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
