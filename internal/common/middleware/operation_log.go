// Package middleware 提供 HTTP 中间件
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/jwt"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	authmw "github.com/dumeirei/affiliate-backend/internal/middleware"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// OperationLogger 操作日志中间件
type OperationLogger struct {
	repo    *repository.OperationLogRepository
	timeout time.Duration
}

// NewOperationLogger 创建操作日志中间件
func NewOperationLogger(repo *repository.OperationLogRepository) *OperationLogger {
	return &OperationLogger{repo: repo, timeout: 3 * time.Second}
}

// OperationConfig 操作配置
type OperationConfig struct {
	Module     string
	Action     string
	TargetType string
}

// moduleActionMap 路由到操作的映射，键为 "METHOD 路由模板" 去掉 /api/v1 前缀
var moduleActionMap = map[string]OperationConfig{
	"PUT /admin/commission-settings": {
		Module: models.LogModuleCommissionSetting,
		Action: "update",
	},
	"PUT /admin/commission-settings/levels/:level": {
		Module: models.LogModuleCommissionSetting,
		Action: "update_level",
	},
	"POST /admin/withdrawals/:id/resolve": {
		Module:     models.LogModuleWithdrawal,
		Action:     "resolve",
		TargetType: "withdrawal",
	},
	"PATCH /admin/affiliates/:id/status": {
		Module:     models.LogModuleAffiliate,
		Action:     "update_status",
		TargetType: "affiliate",
	},
	"PUT /admin/affiliates/:id/referral-code": {
		Module:     models.LogModuleAffiliate,
		Action:     "update_referral_code",
		TargetType: "affiliate",
	},
	"DELETE /admin/affiliates/:id": {
		Module:     models.LogModuleAffiliate,
		Action:     "delete",
		TargetType: "affiliate",
	},
	"PATCH /admin/orders/:id/status": {
		Module:     models.LogModuleOrder,
		Action:     "update_status",
		TargetType: "order",
	},
}

// sensitiveFields 记录前打码的字段
var sensitiveFields = []string{
	"password", "token", "secret", "key",
}

// Log 记录管理员写操作
func (l *OperationLogger) Log() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isWrite(c.Request.Method) {
			c.Next()
			return
		}

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		c.Next()

		entry, ok := l.buildEntry(c, requestBody)
		if !ok {
			return
		}
		l.save(c.Request.Context(), entry)
	}
}

func isWrite(method string) bool {
	return method == "POST" || method == "PUT" || method == "DELETE" || method == "PATCH"
}

// buildEntry 在请求处理完成后构建日志，非管理员请求返回 false
func (l *OperationLogger) buildEntry(c *gin.Context, requestBody []byte) (*models.OperationLog, bool) {
	adminID, ok := adminFromContext(c)
	if !ok {
		return nil, false
	}

	path := c.FullPath()
	config, ok := moduleActionMap[c.Request.Method+" "+strings.TrimPrefix(path, "/api/v1")]
	if !ok {
		config = defaultConfig(c.Request.Method, path)
	}

	entry := &models.OperationLog{
		AdminID:    adminID,
		Module:     config.Module,
		Action:     config.Action,
		StatusCode: c.Writer.Status(),
		IP:         c.ClientIP(),
	}
	if role, ok := c.Get(authmw.ContextKeyRole); ok {
		entry.AdminRole, _ = role.(string)
	}
	if ua := c.Request.UserAgent(); ua != "" {
		if len(ua) > 255 {
			ua = ua[:255]
		}
		entry.UserAgent = &ua
	}
	if config.TargetType != "" {
		targetType := config.TargetType
		entry.TargetType = &targetType
		if id, err := strconv.ParseInt(c.Param("id"), 10, 64); err == nil {
			entry.TargetID = &id
		}
	}

	if len(requestBody) > 0 {
		var data interface{}
		if err := json.Unmarshal(requestBody, &data); err == nil {
			if m, ok := filterSensitiveData(data).(map[string]interface{}); ok {
				entry.Payload = m
			}
		}
	}
	return entry, true
}

// save 写入失败只记录告警，不影响响应
func (l *OperationLogger) save(ctx context.Context, entry *models.OperationLog) {
	if l.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()
	if err := l.repo.Create(ctx, entry); err != nil {
		logger.Warn("写入操作日志失败",
			logger.AdminID(entry.AdminID),
			logger.Module(entry.Module),
			logger.Action(entry.Action),
			logger.Err(err),
		)
	}
}

func adminFromContext(c *gin.Context) (int64, bool) {
	userType, _ := c.Get(authmw.ContextKeyUserType)
	if t, ok := userType.(string); !ok || t != jwt.UserTypeAdmin {
		return 0, false
	}
	v, ok := c.Get(authmw.ContextKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// defaultConfig 从路径推断模块
func defaultConfig(method, path string) OperationConfig {
	module := "unknown"
	switch {
	case strings.Contains(path, "/commission-settings"):
		module = models.LogModuleCommissionSetting
	case strings.Contains(path, "/withdrawals"):
		module = models.LogModuleWithdrawal
	case strings.Contains(path, "/affiliates"):
		module = models.LogModuleAffiliate
	case strings.Contains(path, "/orders"):
		module = models.LogModuleOrder
	}

	action := "unknown"
	switch method {
	case "POST":
		action = "create"
	case "PUT", "PATCH":
		action = "update"
	case "DELETE":
		action = "delete"
	}

	return OperationConfig{Module: module, Action: action}
}

// filterSensitiveData 过滤敏感数据
func filterSensitiveData(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				result[key] = "***"
			} else {
				result[key] = filterSensitiveData(value)
			}
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = filterSensitiveData(item)
		}
		return result
	default:
		return data
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, f := range sensitiveFields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Prune 删除超过保留时长的审计日志
func (l *OperationLogger) Prune(ctx context.Context, keep time.Duration) (int64, error) {
	if l.repo == nil || keep <= 0 {
		return 0, nil
	}
	return l.repo.DeleteBefore(ctx, time.Now().Add(-keep))
}

// RunRetention 启动时清理一次，之后每隔 interval 清理，ctx 取消时退出
func (l *OperationLogger) RunRetention(ctx context.Context, keep, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		deleted, err := l.Prune(ctx, keep)
		if err != nil {
			logger.Warn("清理操作日志失败", logger.Module("operation_log"), logger.Err(err))
		} else if deleted > 0 {
			logger.Info("已清理过期操作日志",
				logger.Module("operation_log"),
				logger.Int64("deleted", deleted),
				logger.Elapsed(time.Since(start)),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
