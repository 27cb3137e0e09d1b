package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AccessLogConfig 访问日志配置
type AccessLogConfig struct {
	Logger *zap.Logger
	// SkipPaths 不记录的路径，如健康检查与指标
	SkipPaths []string
	// SlowThreshold 超过该耗时的成功请求按 Warn 记录，0 表示不区分
	SlowThreshold time.Duration
}

// AccessLog 访问日志中间件
// 不记录请求体与响应体，支付通知与收款账户属于敏感数据
func AccessLog(cfg *AccessLogConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}
		if id := GetUserID(c); id > 0 {
			fields = append(fields,
				zap.Int64("user_id", id),
				zap.String("user_type", GetUserType(c)),
			)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log.Log(accessLevel(status, latency, cfg.SlowThreshold), "HTTP Request", fields...)
	}
}

func accessLevel(status int, latency, slow time.Duration) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	case slow > 0 && latency >= slow:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
