package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dumeirei/affiliate-backend/internal/common/jwt"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWTManager() *jwt.Manager {
	return jwt.NewManager(&jwt.Config{
		Secret:           "middleware-test-secret",
		AccessExpireTime: time.Hour,
	})
}

func mustToken(t *testing.T, m *jwt.Manager, userID int64, userType, role string) string {
	t.Helper()
	token, _, err := m.GenerateAccessToken(userID, userType, role)
	require.NoError(t, err)
	return token
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	m := newJWTManager()
	r := gin.New()
	r.GET("/me", UserAuth(m), func(c *gin.Context) {
		response.Success(c, gin.H{"user_id": GetUserID(c), "admin_id": GetAdminID(c)})
	})
	r.GET("/admin", AdminAuth(m), func(c *gin.Context) {
		response.Success(c, gin.H{"admin_id": GetAdminID(c), "role": GetRole(c)})
	})

	t.Run("用户令牌", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/me", mustToken(t, m, 7, jwt.UserTypeUser, ""))
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				UserID  int64 `json:"user_id"`
				AdminID int64 `json:"admin_id"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(7), resp.Data.UserID)
		assert.Equal(t, int64(0), resp.Data.AdminID)
	})

	t.Run("Cookie 令牌", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: mustToken(t, m, 7, jwt.UserTypeUser, "")})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("缺少令牌", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":2000`)
	})

	t.Run("令牌过期", func(t *testing.T) {
		expired := jwt.NewManager(&jwt.Config{Secret: "middleware-test-secret", AccessExpireTime: -time.Minute})
		w := doRequest(r, http.MethodGet, "/me", mustToken(t, expired, 7, jwt.UserTypeUser, ""))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":2001`)
	})

	t.Run("查询参数令牌不被接受", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/me?token="+mustToken(t, m, 7, jwt.UserTypeUser, ""), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("伪造签名", func(t *testing.T) {
		other := jwt.NewManager(&jwt.Config{Secret: "other", AccessExpireTime: time.Hour})
		w := doRequest(r, http.MethodGet, "/me", mustToken(t, other, 7, jwt.UserTypeUser, ""))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":2002`)
	})

	t.Run("用户令牌访问管理端", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/admin", mustToken(t, m, 7, jwt.UserTypeUser, ""))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("管理员令牌", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/admin", mustToken(t, m, 99, jwt.UserTypeAdmin, RoleFinance))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"admin_id":99`)
		assert.Contains(t, w.Body.String(), `"role":"finance"`)
	})
}

func TestRequirePermission(t *testing.T) {
	m := newJWTManager()
	r := gin.New()
	r.DELETE("/affiliates/1", AdminAuth(m), RequirePermission(PermAffiliateDelete), func(c *gin.Context) {
		response.Success(c, nil)
	})
	r.PATCH("/affiliates/1/status", AdminAuth(m), RequirePermission(PermAffiliateWrite), func(c *gin.Context) {
		response.Success(c, nil)
	})
	r.POST("/withdrawals/1/resolve", AdminAuth(m), RequirePermission(PermWithdrawalResolve), func(c *gin.Context) {
		response.Success(c, nil)
	})

	tests := []struct {
		name   string
		method string
		path   string
		role   string
		want   int
	}{
		{"超级管理员删除", http.MethodDelete, "/affiliates/1", RoleSuperAdmin, http.StatusOK},
		{"财务不能删除", http.MethodDelete, "/affiliates/1", RoleFinance, http.StatusForbidden},
		{"运营不能删除", http.MethodDelete, "/affiliates/1", RoleOperator, http.StatusForbidden},
		{"运营修改状态", http.MethodPatch, "/affiliates/1/status", RoleOperator, http.StatusOK},
		{"财务不能修改状态", http.MethodPatch, "/affiliates/1/status", RoleFinance, http.StatusForbidden},
		{"财务处理提现", http.MethodPost, "/withdrawals/1/resolve", RoleFinance, http.StatusOK},
		{"运营不能处理提现", http.MethodPost, "/withdrawals/1/resolve", RoleOperator, http.StatusForbidden},
		{"无角色", http.MethodPost, "/withdrawals/1/resolve", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.method, tt.path, mustToken(t, m, 1, jwt.UserTypeAdmin, tt.role))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleSuperAdmin, PermOperationLogRead))
	assert.True(t, HasPermission(RoleSuperAdmin, Permission("anything")))
	assert.False(t, HasPermission(RoleFinance, PermCommissionSettingWrite))
	assert.True(t, HasPermission(RoleOperator, PermOrderWrite))
	assert.False(t, HasPermission("unknown", PermOrderWrite))
}

func TestIPRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r := gin.New()
	r.POST("/webhook", IPRateLimit(client, 2, time.Minute), func(c *gin.Context) {
		response.Success(c, nil)
	})

	for i := 0; i < 2; i++ {
		w := doRequest(r, http.MethodPost, "/webhook", "")
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(r, http.MethodPost, "/webhook", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":1008`)
	assert.True(t, mr.Exists("ratelimit:ip:192.0.2.1"))

	mr.FastForward(time.Minute + time.Second)
	w = doRequest(r, http.MethodPost, "/webhook", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
}

func TestUserRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	m := newJWTManager()

	r := gin.New()
	r.POST("/withdrawals", UserAuth(m), UserRateLimit(client, 1, time.Minute), func(c *gin.Context) {
		response.Success(c, nil)
	})

	alice := mustToken(t, m, 11, jwt.UserTypeUser, "")
	bob := mustToken(t, m, 12, jwt.UserTypeUser, "")

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/withdrawals", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(r, http.MethodPost, "/withdrawals", alice).Code)
	// 同一 IP 的其他用户不受影响
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/withdrawals", bob).Code)
	assert.True(t, mr.Exists("ratelimit:user:11"))
	assert.True(t, mr.Exists("ratelimit:user:12"))
}

func TestRateLimit_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	r := gin.New()
	r.GET("/", IPRateLimit(client, 1, time.Minute), func(c *gin.Context) {
		response.Success(c, nil)
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/", "").Code)
	}
}

func TestRequestIDAndRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/id", func(c *gin.Context) { response.Success(c, GetRequestID(c)) })

	w := doRequest(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Contains(t, w.Body.String(), `"code":1006`)

	t.Run("沿用上游 ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/id", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
		assert.Contains(t, w.Body.String(), "req-123")
	})

	t.Run("非法 ID 重新生成", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/id", nil)
		req.Header.Set(HeaderRequestID, "bad id\nforged=1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		got := w.Header().Get(HeaderRequestID)
		assert.NotEqual(t, "bad id\nforged=1", got)
		assert.Len(t, got, 36)
	})
}

func TestSecureHeadersAndSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SecureHeaders(), RequestSizeLimiter(16))
	r.POST("/echo", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, string(body))
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"id":"1"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 64)))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "请求体过大")
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := newJWTManager()

	r := gin.New()
	r.Use(RequestID(), AccessLog(&AccessLogConfig{
		Logger:        zap.New(core),
		SkipPaths:     []string{"/health"},
		SlowThreshold: time.Hour,
	}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/affiliate/info", UserAuth(m), func(c *gin.Context) { response.Success(c, nil) })

	doRequest(r, http.MethodGet, "/health", "")
	assert.Equal(t, 0, logs.Len())

	doRequest(r, http.MethodGet, "/affiliate/info", mustToken(t, m, 5, jwt.UserTypeUser, ""))
	doRequest(r, http.MethodGet, "/affiliate/info", "")
	doRequest(r, http.MethodGet, "/missing", "")

	entries := logs.All()
	require.Len(t, entries, 3)

	ok := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/affiliate/info", ok["route"])
	assert.Equal(t, int64(5), ok["user_id"])
	assert.NotEmpty(t, ok["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(401), entries[1].ContextMap()["status"])
	assert.Equal(t, "unmatched", entries[2].ContextMap()["route"])
}

func TestAccessLevel(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, accessLevel(502, time.Millisecond, time.Second))
	assert.Equal(t, zapcore.WarnLevel, accessLevel(200, 2*time.Second, time.Second))
	assert.Equal(t, zapcore.InfoLevel, accessLevel(200, 2*time.Second, 0))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(&CORSConfig{
		AllowOrigins:     []string{"https://painel.example.com"},
		AllowCredentials: true,
		MaxAge:           600,
	}))
	r.GET("/", func(c *gin.Context) { response.Success(c, nil) })

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := preflight("https://painel.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://painel.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	assert.Equal(t, http.StatusForbidden, preflight("https://evil.example.com").Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	r := gin.New()
	r.Use(CORS(nil))
	r.GET("/", func(c *gin.Context) { response.Success(c, nil) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://qualquer.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Trace-ID")
}
