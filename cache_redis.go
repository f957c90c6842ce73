package nw

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

////////////////
//
// (redis store)
//

// redis store
type redisStore struct {
	client *redis.Client
	prefix string

	verbose bool
}

// NewRedisStore returns a new store backed by Redis at given url (eg. `redis://localhost:6379/0`).
//
// All keys are prefixed with `prefix`.
func NewRedisStore(redisURL, prefix string) (Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return newRedisStore(redis.NewClient(opts), prefix), nil
}

// return a new redis store with given client
func newRedisStore(client *redis.Client, prefix string) *redisStore {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

// Get gets the value of `key` if it exists and is not expired.
func (s *redisStore) Get(ctx context.Context, key string) (value []byte, exists bool) {
	v(s.verbose, "redisStore - getting value with key: %s", key)

	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("failed to get value with key '%s' from redis: %s", key, err)
		}
		return nil, false
	}

	return value, true
}

// Set sets the value of `key` which expires after `ttl`.
func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	v(s.verbose, "redisStore - setting value with key: %s (ttl: %s)", key, ttl)

	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		log.Printf("failed to set value with key '%s' to redis: %s", key, err)
	}
}

// Close closes the redis connection.
func (s *redisStore) Close() error {
	return s.client.Close()
}

// SetVerbose sets the verbosity of store.
func (s *redisStore) SetVerbose(v bool) {
	s.verbose = v
}
