package admin

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	affiliateService "github.com/dumeirei/affiliate-backend/internal/service/affiliate"
	"github.com/dumeirei/affiliate-backend/internal/service/network"
)

// AffiliateHandler 推广员管理处理器
type AffiliateHandler struct {
	affiliateService *affiliateService.Service
	networkService   *network.Service
}

// NewAffiliateHandler 创建推广员管理处理器
func NewAffiliateHandler(affiliateSvc *affiliateService.Service, networkSvc *network.Service) *AffiliateHandler {
	return &AffiliateHandler{
		affiliateService: affiliateSvc,
		networkService:   networkSvc,
	}
}

// List 推广员列表
// @Summary 推广员列表
// @Tags 管理-推广员
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param keyword query string false "姓名/推荐码/邮箱"
// @Param is_active query bool false "是否启用"
// @Param sponsor_id query int false "上级ID"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/affiliates [get]
func (h *AffiliateHandler) List(c *gin.Context) {
	p := handler.BindPagination(c)

	filters := map[string]interface{}{}
	if keyword := c.Query("keyword"); keyword != "" {
		filters["keyword"] = keyword
	}
	if activeStr := c.Query("is_active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			response.BadRequest(c, "无效的启用状态")
			return
		}
		filters["is_active"] = active
	}
	sponsorID, ok := handler.ParseQueryID(c, "sponsor_id", "上级")
	if !ok {
		return
	}
	if sponsorID != nil {
		filters["sponsor_id"] = *sponsorID
	}

	list, total, err := h.affiliateService.List(c.Request.Context(), p.Offset(), p.Limit(), filters)
	handler.MustSucceedPage(c, err, list, total, p)
}

// Get 推广员详情
// @Summary 推广员详情
// @Tags 管理-推广员
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/admin/affiliates/{id} [get]
func (h *AffiliateHandler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "推广员")
	if !ok {
		return
	}

	aff, err := h.affiliateService.GetByID(c.Request.Context(), id)
	handler.MustSucceed(c, err, aff)
}

// SetStatusRequest 启用/停用请求
type SetStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetStatus 启用/停用推广员
// @Summary 启用/停用推广员
// @Tags 管理-推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Param request body SetStatusRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/admin/affiliates/{id}/status [patch]
func (h *AffiliateHandler) SetStatus(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "推广员")
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	aff, err := h.affiliateService.SetActive(c.Request.Context(), adminID, id, *req.IsActive)
	handler.MustSucceed(c, err, aff)
}

// ReferralCodeRequest 修改推荐码请求
type ReferralCodeRequest struct {
	ReferralCode string `json:"referral_code" binding:"required"`
}

// ChangeReferralCode 修改推荐码
// @Summary 修改推荐码
// @Tags 管理-推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Param request body ReferralCodeRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/admin/affiliates/{id}/referral-code [put]
func (h *AffiliateHandler) ChangeReferralCode(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "推广员")
	if !ok {
		return
	}

	var req ReferralCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	aff, err := h.affiliateService.ChangeReferralCode(c.Request.Context(), adminID, id, req.ReferralCode)
	handler.MustSucceed(c, err, aff)
}

// Delete 删除推广员，存在下级、订单、佣金或提现记录时拒绝
// @Summary 删除推广员
// @Tags 管理-推广员
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/affiliates/{id} [delete]
func (h *AffiliateHandler) Delete(c *gin.Context) {
	adminID, id, ok := handler.RequireAdminAndParseID(c, "推广员")
	if !ok {
		return
	}

	err := h.affiliateService.Delete(c.Request.Context(), adminID, id)
	handler.MustSucceedWithMessage(c, err, "推广员已删除", nil)
}

// GetNetwork 查看推广员团队树
// @Summary 查看推广员团队树
// @Tags 管理-推广员
// @Produce json
// @Security Bearer
// @Param id path int true "推广员ID"
// @Param depth query int false "展开层数"
// @Success 200 {object} response.Response{data=network.Node}
// @Router /api/v1/admin/affiliates/{id}/network [get]
func (h *AffiliateHandler) GetNetwork(c *gin.Context) {
	id, ok := handler.ParseID(c, "推广员")
	if !ok {
		return
	}

	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "0"))
	tree, err := h.networkService.Subtree(c.Request.Context(), id, depth)
	handler.MustSucceed(c, err, tree)
}

// RegisterRoutes 注册路由，写操作与删除分别由 writeGuard、deleteGuard 校验权限
func (h *AffiliateHandler) RegisterRoutes(r *gin.RouterGroup, writeGuard, deleteGuard gin.HandlerFunc) {
	affiliates := r.Group("/affiliates")
	{
		affiliates.GET("", h.List)
		affiliates.GET("/:id", h.Get)
		affiliates.PATCH("/:id/status", writeGuard, h.SetStatus)
		affiliates.PUT("/:id/referral-code", writeGuard, h.ChangeReferralCode)
		affiliates.DELETE("/:id", deleteGuard, h.Delete)
		affiliates.GET("/:id/network", h.GetNetwork)
	}
}
