package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// OperationLogHandler 操作日志处理器
type OperationLogHandler struct {
	repo *repository.OperationLogRepository
}

// NewOperationLogHandler 创建操作日志处理器
func NewOperationLogHandler(repo *repository.OperationLogRepository) *OperationLogHandler {
	return &OperationLogHandler{repo: repo}
}

// List 操作日志列表
// @Summary 操作日志列表
// @Tags 管理-操作日志
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param admin_id query int false "管理员ID"
// @Param module query string false "模块: commission_setting/withdrawal/affiliate/order"
// @Param action query string false "操作"
// @Param target_id query int false "目标ID"
// @Param start_date query string false "开始日期 YYYY-MM-DD"
// @Param end_date query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/operation-logs [get]
func (h *OperationLogHandler) List(c *gin.Context) {
	p := handler.BindPagination(c)

	filters := map[string]interface{}{}
	if module := c.Query("module"); module != "" {
		filters["module"] = module
	}
	if action := c.Query("action"); action != "" {
		filters["action"] = action
	}
	adminID, ok := handler.ParseQueryID(c, "admin_id", "管理员")
	if !ok {
		return
	}
	if adminID != nil {
		filters["admin_id"] = *adminID
	}
	targetID, ok := handler.ParseQueryID(c, "target_id", "目标")
	if !ok {
		return
	}
	if targetID != nil {
		filters["target_id"] = *targetID
	}
	if !bindDateFilters(c, filters) {
		return
	}

	logs, total, err := h.repo.List(c.Request.Context(), p.Offset(), p.Limit(), filters)
	if err != nil {
		err = errors.ErrDatabaseError.WithError(err)
	}
	handler.MustSucceedPage(c, err, logs, total, p)
}

// RegisterRoutes 注册路由
func (h *OperationLogHandler) RegisterRoutes(r *gin.RouterGroup, guard gin.HandlerFunc) {
	r.GET("/operation-logs", guard, h.List)
}
