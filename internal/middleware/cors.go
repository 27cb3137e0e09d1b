package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig CORS 配置，空字段使用 DefaultCORSConfig 中的值
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int // 预检结果缓存秒数
}

// DefaultCORSConfig 推广员面板与管理后台的默认跨域配置
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderRequestID},
		ExposeHeaders: []string{HeaderRequestID, "X-Trace-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:        86400,
	}
}

func (cfg *CORSConfig) withDefaults() *CORSConfig {
	def := DefaultCORSConfig()
	if cfg == nil {
		return def
	}
	out := *cfg
	if len(out.AllowOrigins) == 0 {
		out.AllowOrigins = def.AllowOrigins
	}
	if len(out.AllowMethods) == 0 {
		out.AllowMethods = def.AllowMethods
	}
	if len(out.AllowHeaders) == 0 {
		out.AllowHeaders = def.AllowHeaders
	}
	if len(out.ExposeHeaders) == 0 {
		out.ExposeHeaders = def.ExposeHeaders
	}
	return &out
}

// CORS 跨域中间件
// 通配源且允许凭证时回显请求源；不在白名单的预检请求返回 403
func CORS(config *CORSConfig) gin.HandlerFunc {
	cfg := config.withDefaults()

	wildcard := false
	origins := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			wildcard = true
		}
		origins[o] = struct{}{}
	}

	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		c.Writer.Header().Add("Vary", "Origin")

		_, listed := origins[origin]
		allowed := wildcard || listed
		preflight := c.Request.Method == http.MethodOptions &&
			c.GetHeader("Access-Control-Request-Method") != ""

		if !allowed {
			if preflight {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		allowOrigin := origin
		if wildcard && !cfg.AllowCredentials {
			allowOrigin = "*"
		}
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		if cfg.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if preflight {
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", headers)
			if cfg.MaxAge > 0 {
				c.Header("Access-Control-Max-Age", maxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Header("Access-Control-Expose-Headers", expose)
		c.Next()
	}
}
