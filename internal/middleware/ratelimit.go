package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/affiliate-backend/internal/common/cache"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
)

// 限流维度
const (
	RateLimitScopeIP   = "ip"
	RateLimitScopeUser = "user"
)

// rateLimiter 固定窗口计数，键为 ratelimit:<scope>:<identity>
type rateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	// identify 返回限流维度与标识
	identify func(*gin.Context) (scope, id string)
}

// hit 计数加一，首次写入时设置窗口过期时间
func (l *rateLimiter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return incr.Val(), ttl.Val(), nil
}

func (l *rateLimiter) handle(c *gin.Context) {
	scope, id := l.identify(c)
	key := cache.BuildKey(cache.KeyPrefixRateLimit, scope, id)

	count, ttl, err := l.hit(c.Request.Context(), key)
	if err != nil {
		// Redis 不可用时放行
		logger.Warn("限流计数失败，放行请求",
			logger.String("key", key),
			logger.Err(err),
		)
		c.Next()
		return
	}

	remaining := int64(l.limit) - count
	if remaining < 0 {
		remaining = 0
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

	if count > int64(l.limit) {
		if ttl < 0 {
			ttl = l.window
		}
		c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second)/time.Second)))
		logger.Info("请求触发限流",
			logger.String("scope", scope),
			logger.String("path", c.FullPath()),
		)
		response.TooManyRequests(c, "请求过于频繁，请稍后再试")
		return
	}

	c.Next()
}

// IPRateLimit 按客户端 IP 限流，用于支付通知等匿名接口
func IPRateLimit(client *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	l := &rateLimiter{
		client: client,
		limit:  limit,
		window: window,
		identify: func(c *gin.Context) (string, string) {
			return RateLimitScopeIP, c.ClientIP()
		},
	}
	return l.handle
}

// UserRateLimit 按登录用户限流，未登录时退化为按 IP
func UserRateLimit(client *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	l := &rateLimiter{
		client: client,
		limit:  limit,
		window: window,
		identify: func(c *gin.Context) (string, string) {
			if id := GetUserID(c); id > 0 {
				return RateLimitScopeUser, strconv.FormatInt(id, 10)
			}
			return RateLimitScopeIP, c.ClientIP()
		},
	}
	return l.handle
}
