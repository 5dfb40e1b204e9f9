package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
)

// PayloadStore is the shared, out-of-process tier holding encoded cached
// accounts (see accountstate.EncodeCachedAccount).
type PayloadStore interface {
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisClient is the subset of *redis.Client used by RedisPayloadStore.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisPayloadStore keeps payloads in Redis.
type RedisPayloadStore struct {
	client RedisClient
}

var _ PayloadStore = (*RedisPayloadStore)(nil)

func NewRedisPayloadStore(client RedisClient) *RedisPayloadStore {
	return &RedisPayloadStore{client: client}
}

func (s *RedisPayloadStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get %s: %w", key, err)
	}
	return payload, true, nil
}

func (s *RedisPayloadStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisPayloadStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: redis del %s: %w", key, err)
	}
	return nil
}

// MemcacheClient is the subset of *memcache.Client used by
// MemcachePayloadStore.
type MemcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

func NewMemcacheClient(servers ...string) *memcache.Client {
	return memcache.New(servers...)
}

// MemcachePayloadStore keeps payloads in Memcached. The client has no context
// support; a cancelled context is checked before each call.
type MemcachePayloadStore struct {
	client MemcacheClient
}

var _ PayloadStore = (*MemcachePayloadStore)(nil)

func NewMemcachePayloadStore(client MemcacheClient) *MemcachePayloadStore {
	return &MemcachePayloadStore{client: client}
}

func (s *MemcachePayloadStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, err := s.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: memcache get %s: %w", key, err)
	}
	return item.Value, true, nil
}

func (s *MemcachePayloadStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Set(&memcache.Item{Key: key, Value: payload, Expiration: expirationSeconds(ttl)}); err != nil {
		return fmt.Errorf("cache: memcache set %s: %w", key, err)
	}
	return nil
}

func (s *MemcachePayloadStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.client.Delete(key)
	if err == nil || errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return fmt.Errorf("cache: memcache delete %s: %w", key, err)
}

// expirationSeconds converts ttl to memcached's relative seconds. Sub-second
// positive TTLs round up so they do not mean "never expire".
func expirationSeconds(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	secs := int32(ttl / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}
