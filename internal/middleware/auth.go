// Package middleware 提供 HTTP 中间件
package middleware

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/jwt"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
)

// 上下文键
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUserType = "user_type"
	ContextKeyRole     = "role"
)

// tokenCookie 浏览器端令牌 Cookie 名
const tokenCookie = "token"

// UserAuth 推广员令牌认证
func UserAuth(manager *jwt.Manager) gin.HandlerFunc {
	return authenticate(manager, jwt.UserTypeUser)
}

// AdminAuth 管理员令牌认证
func AdminAuth(manager *jwt.Manager) gin.HandlerFunc {
	return authenticate(manager, jwt.UserTypeAdmin)
}

// authenticate 校验令牌并把身份写入上下文，userType 不符时返回 403
func authenticate(manager *jwt.Manager, userType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			rejectToken(c, errors.ErrUnauthorized.WithMessage("请先登录"))
			return
		}

		claims, err := manager.ParseToken(token)
		if err != nil {
			if stderrors.Is(err, jwt.ErrTokenExpired) {
				rejectToken(c, errors.ErrTokenExpired.WithMessage("登录已过期，请重新登录"))
			} else {
				rejectToken(c, errors.ErrTokenInvalid)
			}
			return
		}

		if claims.UserType != userType {
			response.Forbidden(c, "无权访问")
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserType, claims.UserType)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

func rejectToken(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.Response{Code: appErr.Code, Message: appErr.Message})
}

// bearerToken Authorization 头优先，其次 Cookie；查询参数中的令牌不接受
func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	token, _ = c.Cookie(tokenCookie)
	return token
}

// GetUserID 当前令牌的用户 ID，未认证返回 0
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(ContextKeyUserID)
}

func GetUserType(c *gin.Context) string {
	return c.GetString(ContextKeyUserType)
}

// GetRole 管理员角色，推广员令牌为空串
func GetRole(c *gin.Context) string {
	return c.GetString(ContextKeyRole)
}

// GetAdminID 管理员 ID，非管理员令牌返回 0
func GetAdminID(c *gin.Context) int64 {
	if GetUserType(c) != jwt.UserTypeAdmin {
		return 0
	}
	return GetUserID(c)
}
