package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations. Values are JSON encoded, so Get decodes into any dest
// that matches what was stored.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Clock returns the current time. Caches take one so expiry can be tested deterministically.
type Clock func() time.Time

// GetOrLoad is a read-through helper: on a miss it calls load and stores the result.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var out T
	// any cache error falls through to load
	if err := c.Get(ctx, key, &out); err == nil {
		return out, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}
