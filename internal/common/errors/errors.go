// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind 错误类别
type Kind string

// 错误类别
const (
	KindUnknown       Kind = "unknown"
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConfiguration Kind = "configuration"
	KindGateway       Kind = "gateway"
	KindPersistence   Kind = "persistence"
	KindAuth          Kind = "auth"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"-"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，WithMessage/WithError 派生的错误与原错误视为同一错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建新的应用错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Kind:    KindUnknown,
	}
}

// Define 创建指定类别的应用错误
func Define(kind Kind, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Kind:    e.Kind,
		Err:     e.Err,
	}
}

// WithMessagef 格式化修改错误消息
func (e *AppError) WithMessagef(format string, args ...interface{}) *AppError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Kind:    e.Kind,
		Err:     err,
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = Define(KindUnknown, 1000, "未知错误")
	ErrInvalidParams   = Define(KindValidation, 1001, "参数错误")
	ErrNotFound        = Define(KindNotFound, 1002, "资源不存在")
	ErrDatabaseError   = Define(KindPersistence, 1004, "数据库错误")
	ErrInternalError   = Define(KindUnknown, 1006, "内部错误")
	ErrRateLimitExceed = Define(KindValidation, 1008, "请求过于频繁")
	ErrOperationFailed = Define(KindUnknown, 1009, "操作失败")
	ErrConfiguration   = Define(KindConfiguration, 1010, "系统配置错误")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = Define(KindAuth, 2000, "未登录")
	ErrTokenExpired     = Define(KindAuth, 2001, "登录已过期")
	ErrTokenInvalid     = Define(KindAuth, 2002, "无效的令牌")
	ErrPermissionDenied = Define(KindAuth, 2004, "权限不足")
)

// 推广员错误码 (3000-3999)
var (
	ErrAffiliateNotFound   = Define(KindNotFound, 3000, "推广员不存在")
	ErrAffiliateExists     = Define(KindValidation, 3001, "已经是推广员")
	ErrReferralCodeInvalid = Define(KindValidation, 3002, "推荐码无效")
	ErrReferralCodeTaken   = Define(KindValidation, 3003, "推荐码已被使用")
	ErrAffiliateInactive   = Define(KindValidation, 3004, "推广员已停用")
	ErrAffiliateHasLinks   = Define(KindValidation, 3005, "推广员存在关联数据，无法删除")
	ErrPayoutKeyMissing    = Define(KindValidation, 3006, "请先设置收款账户")
	ErrPayoutKeyInvalid    = Define(KindValidation, 3007, "收款账户格式错误")
)

// 佣金错误码 (4000-4999)
var (
	ErrCommissionConfigInvalid = Define(KindValidation, 4000, "佣金配置无效")
	ErrCommissionConfigCorrupt = Define(KindConfiguration, 4001, "佣金配置已损坏")
	ErrSaleAmountInvalid       = Define(KindValidation, 4002, "订单金额无效")
)

// 订单错误码 (5000-5999)
var (
	ErrOrderNotFound      = Define(KindNotFound, 5000, "订单不存在")
	ErrOrderStatusError   = Define(KindValidation, 5001, "订单状态异常")
	ErrSubscriptionActive = Define(KindValidation, 5002, "已有生效中的订阅")
)

// 支付错误码 (6000-6999)
var (
	ErrGatewayNotConfigured = Define(KindConfiguration, 6001, "支付网关未配置")
	ErrGatewayUnavailable   = Define(KindGateway, 6002, "支付网关请求失败")
)

// 提现与余额错误码 (7000-7999)
var (
	ErrWithdrawalNotFound  = Define(KindNotFound, 7000, "提现申请不存在")
	ErrWithdrawalResolved  = Define(KindValidation, 7001, "该提现申请已处理")
	ErrWithdrawAmount      = Define(KindValidation, 7002, "提现金额无效")
	ErrBalanceInsufficient = Define(KindValidation, 7003, "可提现余额不足")
	ErrLedgerConflict      = Define(KindValidation, 7004, "余额已变动，请重试")
	ErrLedgerInconsistent  = Define(KindPersistence, 7005, "账户余额异常")
	ErrWithdrawalOutcome   = Define(KindValidation, 7006, "无效的处理结果")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// KindOf 返回错误类别，非应用错误视为 unknown
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Is 代理标准库 errors.Is
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
