package repository

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by KVStore.Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// KVStore defines the key-value operations backing the indexed flag, the
// indexing claim, and the answer cache. Callers hold it as an optional
// capability: a nil KVStore means the backend was unreachable at startup,
// and consumers degrade instead of failing.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
}
