// Package response 提供统一的 API 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
)

// Response API 统一响应结构，Code 为 0 表示成功，否则为业务错误码
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData 分页数据结构
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	SuccessWithMessage(c, "success", data)
}

// SuccessWithMessage 成功响应（带消息）
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: message, Data: data})
}

// SuccessPage 分页成功响应，list 为 nil 时输出空数组
func SuccessPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	if list == nil {
		list = []struct{}{}
	}
	Success(c, PageData{List: list, Total: total, Page: page, PageSize: pageSize})
}

// ErrorWithStatus 业务错误响应，指定 HTTP 状态码
func ErrorWithStatus(c *gin.Context, status, code int, message string) {
	c.JSON(status, Response{Code: code, Message: message})
}

// abortWith 以业务错误码中止请求，message 为空时使用错误默认消息
func abortWith(c *gin.Context, status int, appErr *errors.AppError, message string) {
	if message == "" {
		message = appErr.Message
	}
	c.AbortWithStatusJSON(status, Response{Code: appErr.Code, Message: message})
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, message string) {
	abortWith(c, http.StatusBadRequest, errors.ErrInvalidParams, message)
}

// Unauthorized 未登录或令牌无效
func Unauthorized(c *gin.Context, message string) {
	abortWith(c, http.StatusUnauthorized, errors.ErrUnauthorized, message)
}

// Forbidden 权限不足
func Forbidden(c *gin.Context, message string) {
	abortWith(c, http.StatusForbidden, errors.ErrPermissionDenied, message)
}

// TooManyRequests 请求过于频繁
func TooManyRequests(c *gin.Context, message string) {
	abortWith(c, http.StatusTooManyRequests, errors.ErrRateLimitExceed, message)
}
