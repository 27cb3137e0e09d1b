package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis 创建 miniredis 测试实例
func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestInit(t *testing.T) {
	s := setupMiniRedis(t)

	client, err := Init(&config.RedisConfig{
		Host:         s.Host(),
		Port:         s.Server().Addr().Port,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  1,
		ReadTimeout:  1,
		WriteTimeout: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestInit_Unreachable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	addr := s.Server().Addr()
	s.Close()

	client, err := Init(&config.RedisConfig{Host: addr.IP.String(), Port: addr.Port, DialTimeout: 1})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to connect redis")
}

// ==================== BuildKey 测试 ====================

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "lock:webhook:7:pay-1", BuildKey(KeyPrefixWebhook, "7", "pay-1"))
	assert.Equal(t, "ratelimit:ip", BuildKey(KeyPrefixRateLimit, "ip"))
	assert.Equal(t, "lock", BuildKey(KeyPrefixLock))
}

// ==================== Locker 测试 ====================

func newTestLocker(t *testing.T, s *miniredis.Miniredis, ttl time.Duration) *Locker {
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, ttl)
}

func TestNewLocker_NilClient(t *testing.T) {
	assert.Nil(t, NewLocker(nil, time.Second))
}

func TestLocker_TryLock(t *testing.T) {
	s := setupMiniRedis(t)
	locker := newTestLocker(t, s, 10*time.Second)
	ctx := context.Background()

	lock, err := locker.TryLock(ctx, "lock:a")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "lock:a", lock.Key())
	assert.Equal(t, 10*time.Second, s.TTL("lock:a"))

	busy, err := locker.TryLock(ctx, "lock:a")
	require.NoError(t, err)
	assert.Nil(t, busy)

	other, err := locker.TryLock(ctx, "lock:b")
	require.NoError(t, err)
	assert.NotNil(t, other)

	require.NoError(t, lock.Release(ctx))
	assert.False(t, s.Exists("lock:a"))

	again, err := locker.TryLock(ctx, "lock:a")
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestLock_ReleaseAfterExpiry(t *testing.T) {
	s := setupMiniRedis(t)
	locker := newTestLocker(t, s, time.Second)
	ctx := context.Background()

	lock, err := locker.TryLock(ctx, "lock:a")
	require.NoError(t, err)
	require.NotNil(t, lock)

	s.FastForward(2 * time.Second)

	// 锁过期后被其他持有者获取，原持有者不能释放
	newer, err := locker.TryLock(ctx, "lock:a")
	require.NoError(t, err)
	require.NotNil(t, newer)

	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
	assert.True(t, s.Exists("lock:a"))
	assert.NoError(t, newer.Release(ctx))
}

func TestLocker_DefaultTTL(t *testing.T) {
	s := setupMiniRedis(t)
	locker := newTestLocker(t, s, 0)

	_, err := locker.TryLock(context.Background(), "lock:a")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, s.TTL("lock:a"))
}

func TestLocker_RedisDown(t *testing.T) {
	s := setupMiniRedis(t)
	locker := newTestLocker(t, s, time.Second)
	s.Close()

	_, err := locker.TryLock(context.Background(), "lock:a")
	assert.Error(t, err)
}
