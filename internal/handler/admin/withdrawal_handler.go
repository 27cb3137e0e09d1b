package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/service/withdrawal"
)

// WithdrawalHandler 提现管理处理器
type WithdrawalHandler struct {
	withdrawalService *withdrawal.Service
}

// NewWithdrawalHandler 创建提现管理处理器
func NewWithdrawalHandler(withdrawalSvc *withdrawal.Service) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: withdrawalSvc}
}

// List 提现申请列表
// @Summary 提现申请列表
// @Tags 管理-提现
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param status query string false "状态: pending/paid/rejected"
// @Param affiliate_id query int false "推广员ID"
// @Param start_date query string false "开始日期 YYYY-MM-DD"
// @Param end_date query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/withdrawals [get]
func (h *WithdrawalHandler) List(c *gin.Context) {
	p := handler.BindPagination(c)

	filters := map[string]interface{}{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	affiliateID, ok := handler.ParseQueryID(c, "affiliate_id", "推广员")
	if !ok {
		return
	}
	if affiliateID != nil {
		filters["affiliate_id"] = *affiliateID
	}
	if !bindDateFilters(c, filters) {
		return
	}

	list, total, err := h.withdrawalService.List(c.Request.Context(), p.Offset(), p.Limit(), filters)
	handler.MustSucceedPage(c, err, list, total, p)
}

// Get 提现申请详情
// @Summary 提现申请详情
// @Tags 管理-提现
// @Produce json
// @Security Bearer
// @Param id path int true "提现申请ID"
// @Success 200 {object} response.Response{data=models.Withdrawal}
// @Router /api/v1/admin/withdrawals/{id} [get]
func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "提现申请")
	if !ok {
		return
	}

	w, err := h.withdrawalService.GetByID(c.Request.Context(), id)
	handler.MustSucceed(c, err, w)
}

// ResolveRequest 处理提现请求
type ResolveRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=paid rejected"`
	Reason  string `json:"reason" binding:"max=255"`
}

// Resolve 处理提现申请
// @Summary 处理提现申请
// @Tags 管理-提现
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "提现申请ID"
// @Param request body ResolveRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Withdrawal}
// @Router /api/v1/admin/withdrawals/{id}/resolve [post]
func (h *WithdrawalHandler) Resolve(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "提现申请")
	if !ok {
		return
	}

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	w, err := h.withdrawalService.Resolve(c.Request.Context(), adminID, id, req.Outcome, req.Reason)
	handler.MustSucceedWithMessage(c, err, "提现申请已处理", w)
}

// RegisterRoutes 注册路由
func (h *WithdrawalHandler) RegisterRoutes(r *gin.RouterGroup, resolveGuard gin.HandlerFunc) {
	withdrawals := r.Group("/withdrawals")
	{
		withdrawals.GET("", h.List)
		withdrawals.GET("/:id", h.Get)
		withdrawals.POST("/:id/resolve", resolveGuard, h.Resolve)
	}
}
