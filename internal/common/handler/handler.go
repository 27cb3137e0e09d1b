// Package handler Handler 层共用的错误映射、身份读取与参数解析
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/database"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/middleware"
)

const internalErrorMessage = "服务器内部错误"

// StatusOf 错误对应的 HTTP 状态码
// 个别错误码有专属状态，其余按错误类别映射，未知错误为 500
func StatusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrLedgerConflict):
		return http.StatusConflict
	case errors.Is(err, errors.ErrRateLimitExceed):
		return http.StatusTooManyRequests
	}

	switch errors.KindOf(err) {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindAuth:
		return http.StatusUnauthorized
	case errors.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError err 非空时写出错误响应并返回 true，调用方随即 return
//
//	if handler.HandleError(c, err) {
//	    return
//	}
//
// 5xx 只对外返回通用消息，原始错误写入日志；网关错误保留其业务消息
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	appErr := errors.GetAppError(err)
	status := StatusOf(err)
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		logger.Error("请求处理失败",
			logger.String("route", c.FullPath()),
			logger.String("request_id", middleware.GetRequestID(c)),
			logger.String("kind", string(appErr.Kind)),
			logger.Err(err),
		)
		if appErr.Kind != errors.KindGateway {
			message = internalErrorMessage
		}
	}

	response.ErrorWithStatus(c, status, appErr.Code, message)
	return true
}

// MustSucceed 出错写错误响应，否则写 data
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if !HandleError(c, err) {
		response.Success(c, data)
	}
}

// MustSucceedWithMessage 同 MustSucceed，成功时附带提示消息
func MustSucceedWithMessage(c *gin.Context, err error, message string, data interface{}) {
	if !HandleError(c, err) {
		response.SuccessWithMessage(c, message, data)
	}
}

// MustSucceedPage 分页列表版本
func MustSucceedPage(c *gin.Context, err error, list interface{}, total int64, p Page) {
	if !HandleError(c, err) {
		response.SuccessPage(c, list, total, p.Page, p.PageSize)
	}
}

// RequireUserID 读取推广员用户 ID，未登录时写 401 并返回 false
func RequireUserID(c *gin.Context) (int64, bool) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return userID, true
}

// RequireAdminID 读取管理员 ID，用户令牌视为未登录
func RequireAdminID(c *gin.Context) (int64, bool) {
	adminID := middleware.GetAdminID(c)
	if adminID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return adminID, true
}

// ParseID 解析路径参数 id
func ParseID(c *gin.Context, resourceName string) (int64, bool) {
	return ParseParamID(c, "id", resourceName)
}

// ParseParamID 解析指定路径参数，失败时写 400，resourceName 用于提示消息
func ParseParamID(c *gin.Context, paramName, resourceName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// ParseQueryID 解析可选的查询参数 ID，参数缺省时返回 (nil, true)
func ParseQueryID(c *gin.Context, paramName, resourceName string) (*int64, bool) {
	raw := c.Query(paramName)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return nil, false
	}
	return &id, true
}

// RequireAdminAndParseID 管理员身份加路径 id
func RequireAdminAndParseID(c *gin.Context, resourceName string) (adminID, resourceID int64, ok bool) {
	if adminID, ok = RequireAdminID(c); !ok {
		return 0, 0, false
	}
	if resourceID, ok = ParseID(c, resourceName); !ok {
		return 0, 0, false
	}
	return adminID, resourceID, true
}

// Page 页码分页参数，页码从 1 开始
type Page struct {
	Page     int
	PageSize int
}

// Offset 仓储层偏移量
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit 仓储层条数
func (p Page) Limit() int {
	return p.PageSize
}

// BindPagination 读取 page 与 page_size，非法值回落到默认并限制上限
func BindPagination(c *gin.Context) Page {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.Query("page_size"))
	switch {
	case err != nil || size < 1:
		size = database.DefaultLimit
	case size > database.MaxLimit:
		size = database.MaxLimit
	}
	return Page{Page: page, PageSize: size}
}
