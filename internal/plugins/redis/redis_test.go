package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"marketchat/internal/config"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(context.Background(), &config.RedisConfig{
		URL:          "redis://" + mr.Addr(),
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     2,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestNewRedisClientFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), &config.RedisConfig{
		URL:         "redis://" + addr,
		DialTimeout: 200 * time.Millisecond,
		PingTimeout: 500 * time.Millisecond,
	})
	require.Error(t, err)
}

func TestLastSeenStore(t *testing.T) {
	_, rdb := newTestClient(t)
	store := NewLastSeenStore(rdb, "test")
	ctx := context.Background()

	newer := time.UnixMilli(1_700_000_060_000).UTC()
	older := time.UnixMilli(1_700_000_000_000).UTC()
	require.NoError(t, store.Touch(ctx, "u1", newer))
	require.NoError(t, store.Touch(ctx, "u1", older))
	require.NoError(t, store.Touch(ctx, "u2", older))

	seen, err := store.LastSeen(ctx, []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	require.Equal(t, newer, seen["u1"])
	require.Equal(t, older, seen["u2"])

	empty, err := store.LastSeen(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestFixedWindowLimiterRedis(t *testing.T) {
	_, rdb := newTestClient(t)
	limiter, err := NewFixedWindowLimiter(rdb, "test", 2, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "send:u1"))
	require.True(t, limiter.Allow(ctx, "send:u1"))
	require.False(t, limiter.Allow(ctx, "send:u1"))
	require.True(t, limiter.Allow(ctx, "send:u2"))
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	mr, rdb := newTestClient(t)
	limiter, err := NewFixedWindowLimiter(rdb, "test", 5, time.Minute)
	require.NoError(t, err)
	mr.Close()

	require.False(t, limiter.Allow(context.Background(), "send:u1"))
}

func TestFixedWindowLimiterRequiresPositiveSettings(t *testing.T) {
	_, rdb := newTestClient(t)
	_, err := NewFixedWindowLimiter(rdb, "test", 0, time.Minute)
	require.Error(t, err)
	_, err = NewFixedWindowLimiter(nil, "test", 1, time.Minute)
	require.Error(t, err)
}

func TestKeysShareDeploymentPrefix(t *testing.T) {
	require.Equal(t, "marketchat:ratelimit", namespace("  ", "ratelimit"))
	require.Equal(t, "shop:presence:last_seen", namespace("shop", "presence", "last_seen"))

	mr, rdb := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, NewLastSeenStore(rdb, "shop").Touch(ctx, "u1", time.Now()))
	require.True(t, mr.Exists("shop:presence:last_seen"))

	limiter, err := NewFixedWindowLimiter(rdb, "", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, limiter.Allow(ctx, "u1"))
	var found bool
	for _, k := range mr.Keys() {
		found = found || strings.HasPrefix(k, "marketchat:ratelimit:u1:")
	}
	require.True(t, found, mr.Keys())
}
