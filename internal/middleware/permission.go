package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/response"
)

// 管理员角色
const (
	RoleSuperAdmin = "super_admin"
	RoleFinance    = "finance"
	RoleOperator   = "operator"
)

// Permission 管理端写操作权限，读操作对所有管理员开放
type Permission string

const (
	PermCommissionSettingWrite Permission = "commission_setting:write"
	PermWithdrawalResolve      Permission = "withdrawal:resolve"
	PermAffiliateWrite         Permission = "affiliate:write"
	PermAffiliateDelete        Permission = "affiliate:delete"
	PermOrderWrite             Permission = "order:write"
	PermOperationLogRead       Permission = "operation_log:read"
)

// rolePermissions 超级管理员拥有全部权限，不在表中列出
var rolePermissions = map[string]map[Permission]struct{}{
	RoleFinance: {
		PermWithdrawalResolve: {},
	},
	RoleOperator: {
		PermAffiliateWrite: {},
		PermOrderWrite:     {},
	},
}

// HasPermission 判断角色是否拥有权限
func HasPermission(role string, perm Permission) bool {
	if role == RoleSuperAdmin {
		return true
	}
	_, ok := rolePermissions[role][perm]
	return ok
}

// RequirePermission 要求当前管理员拥有指定权限，须在 AdminAuth 之后使用
func RequirePermission(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasPermission(GetRole(c), perm) {
			response.Forbidden(c, "权限不足")
			return
		}
		c.Next()
	}
}
