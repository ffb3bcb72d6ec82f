// Package kv defines the TTL key/value store shared by the response cache and
// password-reset tokens. Backends live in sub-packages.
package kv

import (
	"context"
	"time"
)

// Store is a byte-valued key/value store with optional per-key expiry.
// A ttl of zero stores the value without store-level expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
