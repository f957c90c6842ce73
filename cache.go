package nw

import (
	"context"
	"time"
)

const (
	defaultMemStoreSize = 4096

	slowQueryThresholdSeconds = 3
)

// Store is an interface of key-value stores with expiry, used for caching feeds and deks.
//
// Implementations are expected to be atomic per key,
// and to log (not return) their errors: a failing store is treated as a cache miss.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, exists bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	SetVerbose(v bool)
}
