package cache

import (
	"context"
	"time"
)

// DurableTier is the pluggable persistent backend.
//
// A zero expiresAt means the entry never expires. Implementations treat an
// entry whose expiry has passed as absent on read and may delete it.
type DurableTier interface {
	Get(ctx context.Context, namespace, key string) (value []byte, expiresAt time.Time, ok bool, err error)
	Put(ctx context.Context, namespace, key string, value []byte, expiresAt time.Time) error
	Delete(ctx context.Context, namespace, key string) error
	Close() error
}

// nopTier is the disabled durable backend: reads miss, writes vanish.
// Running without durability is an explicit degraded mode, not an error.
type nopTier struct{}

func (nopTier) Get(context.Context, string, string) ([]byte, time.Time, bool, error) {
	return nil, time.Time{}, false, nil
}
func (nopTier) Put(context.Context, string, string, []byte, time.Time) error { return nil }
func (nopTier) Delete(context.Context, string, string) error                 { return nil }
func (nopTier) Close() error                                                 { return nil }
