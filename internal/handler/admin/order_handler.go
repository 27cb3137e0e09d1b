package admin

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	orderService "github.com/dumeirei/affiliate-backend/internal/service/order"
	"github.com/dumeirei/affiliate-backend/internal/service/report"
)

// OrderHandler 订单管理处理器
type OrderHandler struct {
	orderService *orderService.LifecycleService
}

// NewOrderHandler 创建订单管理处理器
func NewOrderHandler(orderSvc *orderService.LifecycleService) *OrderHandler {
	return &OrderHandler{orderService: orderSvc}
}

// List 获取订单列表
// @Summary 获取订单列表
// @Tags 管理-订单
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param status query string false "状态: pending/active/suspended/cancelled"
// @Param order_no query string false "订单号"
// @Param affiliate_id query int false "推广员ID"
// @Param start_date query string false "开始日期 YYYY-MM-DD"
// @Param end_date query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	p := handler.BindPagination(c)

	filters := map[string]interface{}{}
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if orderNo := c.Query("order_no"); orderNo != "" {
		filters["order_no"] = orderNo
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

	orders, total, err := h.orderService.List(c.Request.Context(), p.Offset(), p.Limit(), filters)
	handler.MustSucceedPage(c, err, orders, total, p)
}

// GetByID 获取订单详情，含该订单产生的佣金
// @Summary 获取订单详情
// @Tags 管理-订单
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=orderService.OrderDetail}
// @Router /api/v1/admin/orders/{id} [get]
func (h *OrderHandler) GetByID(c *gin.Context) {
	id, ok := handler.ParseID(c, "订单")
	if !ok {
		return
	}

	detail, err := h.orderService.GetDetail(c.Request.Context(), id)
	handler.MustSucceed(c, err, detail)
}

// UpdateStatusRequest 修改订单状态请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 修改订单状态（暂停、恢复、取消）
// @Summary 修改订单状态
// @Tags 管理-订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Param request body UpdateStatusRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /api/v1/admin/orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "订单")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), adminID, id, req.Status)
	handler.MustSucceed(c, err, order)
}

// RegisterRoutes 注册路由，状态变更需要 writeGuard
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup, writeGuard gin.HandlerFunc) {
	orders := r.Group("/orders")
	{
		orders.GET("", h.List)
		orders.GET("/:id", h.GetByID)
		orders.PATCH("/:id/status", writeGuard, h.UpdateStatus)
	}
}

// bindDateFilters 解析 start_date/end_date 查询参数，结束日期包含当天
func bindDateFilters(c *gin.Context, filters map[string]interface{}) bool {
	start, end := c.Query("start_date"), c.Query("end_date")
	if start == "" && end == "" {
		return true
	}

	period, err := report.ParsePeriod("", start, end, time.Now())
	if handler.HandleError(c, err) {
		return false
	}
	filters["start_date"] = period.Start
	filters["end_date"] = period.End
	return true
}
