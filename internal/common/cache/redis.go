// Package cache 提供 Redis 连接与分布式锁
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
)

// Init 建立 Redis 连接并校验可用，失败时关闭客户端
func Init(cfg *config.RedisConfig) (*redis.Client, error) {
	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  seconds(cfg.DialTimeout),
		ReadTimeout:  seconds(cfg.ReadTimeout),
		WriteTimeout: seconds(cfg.WriteTimeout),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// 缓存键前缀
const (
	KeyPrefixRateLimit = "ratelimit:"
	KeyPrefixLock      = "lock:"
	KeyPrefixWebhook   = "lock:webhook:"
)

// BuildKey 构建缓存键，各部分以冒号连接
func BuildKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(prefix, ":")
	}
	return prefix + strings.Join(parts, ":")
}

// ErrLockNotHeld 锁已过期或被其他持有者占用
var ErrLockNotHeld = errors.New("cache: lock not held")

// 仅当值与持有者令牌一致时删除，避免误删他人的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SETNX 的分布式锁
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker 创建分布式锁，client 为 nil 时返回 nil
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Lock 已获取的锁
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// TryLock 尝试获取锁，已被占用时返回 nil, nil
func (l *Locker) TryLock(ctx context.Context, key string) (*Lock, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		metrics.RecordLockAttemptGlobal(metrics.LockError)
		return nil, err
	}
	if !ok {
		metrics.RecordLockAttemptGlobal(metrics.LockBusy)
		return nil, nil
	}
	metrics.RecordLockAttemptGlobal(metrics.LockAcquired)
	return &Lock{locker: l, key: key, token: token}, nil
}

// Release 释放锁
func (lk *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Key 锁的键
func (lk *Lock) Key() string {
	return lk.key
}
