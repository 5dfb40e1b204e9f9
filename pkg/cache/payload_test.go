package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data map[string]string
	ttl  time.Duration
	err  error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisPayloadStore(t *testing.T) {
	ctx := context.Background()
	client := &fakeRedis{data: map[string]string{}}
	store := NewRedisPayloadStore(client)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte(`{"version":1}`), time.Minute))
	assert.Equal(t, time.Minute, client.ttl)

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"version":1}`, string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisPayloadStoreWrapsErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	store := NewRedisPayloadStore(&fakeRedis{data: map[string]string{}, err: boom})

	_, _, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, store.Set(ctx, "k", nil, 0), boom)
	require.ErrorIs(t, store.Delete(ctx, "k"), boom)
}

type fakeMemcache struct {
	items map[string]*memcache.Item
	err   error
}

func (f *fakeMemcache) Get(key string) (*memcache.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return item, nil
}

func (f *fakeMemcache) Set(item *memcache.Item) error {
	if f.err != nil {
		return f.err
	}
	f.items[item.Key] = item
	return nil
}

func (f *fakeMemcache) Delete(key string) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(f.items, key)
	return nil
}

func TestMemcachePayloadStore(t *testing.T) {
	ctx := context.Background()
	client := &fakeMemcache{items: map[string]*memcache.Item{}}
	store := NewMemcachePayloadStore(client)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("payload"), 90*time.Second))
	assert.Equal(t, int32(90), client.items["k"].Expiration)

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"), "missing keys are not an error")
}

func TestMemcachePayloadStoreErrors(t *testing.T) {
	boom := errors.New("server down")
	store := NewMemcachePayloadStore(&fakeMemcache{items: map[string]*memcache.Item{}, err: boom})
	ctx := context.Background()

	_, _, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, store.Set(ctx, "k", nil, 0), boom)
	require.ErrorIs(t, store.Delete(ctx, "k"), boom)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = store.Get(cancelled, "k")
	require.ErrorIs(t, err, context.Canceled)
}

func TestExpirationSeconds(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int32
	}{
		{ttl: 0, want: 0},
		{ttl: -time.Second, want: 0},
		{ttl: 200 * time.Millisecond, want: 1},
		{ttl: 10 * time.Minute, want: 600},
	}
	for _, tt := range tests {
		if got := expirationSeconds(tt.ttl); got != tt.want {
			t.Fatalf("expirationSeconds(%v) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}
