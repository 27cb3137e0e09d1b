// Package admin 管理端 HTTP Handler
package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/service/commission"
)

// CommissionSettingHandler 佣金配置处理器
type CommissionSettingHandler struct {
	settingService *commission.SettingService
	distributor    *commission.Distributor
}

// NewCommissionSettingHandler 创建佣金配置处理器
func NewCommissionSettingHandler(settingSvc *commission.SettingService, distributor *commission.Distributor) *CommissionSettingHandler {
	return &CommissionSettingHandler{settingService: settingSvc, distributor: distributor}
}

// Get 获取佣金配置
// @Summary 获取佣金配置
// @Tags 管理-佣金配置
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=commission.ConfigView}
// @Router /api/v1/admin/commission-settings [get]
func (h *CommissionSettingHandler) Get(c *gin.Context) {
	view, err := h.settingService.GetConfig(c.Request.Context())
	handler.MustSucceed(c, err, view)
}

// Update 更新佣金配置
// @Summary 更新佣金配置
// @Tags 管理-佣金配置
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body commission.UpdateConfigRequest true "请求参数"
// @Success 200 {object} response.Response{data=commission.ConfigView}
// @Router /api/v1/admin/commission-settings [put]
func (h *CommissionSettingHandler) Update(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}

	var req commission.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	view, err := h.settingService.UpdateConfig(c.Request.Context(), adminID, &req)
	handler.MustSucceedWithMessage(c, err, "佣金配置已更新", view)
}

// UpdateLevelRequest 修改单层配置请求
type UpdateLevelRequest struct {
	Value decimal.Decimal `json:"value"`
}

// UpdateLevel 修改单个层级的佣金值
// @Summary 修改单个层级的佣金值
// @Tags 管理-佣金配置
// @Accept json
// @Produce json
// @Security Bearer
// @Param level path int true "层级"
// @Param request body UpdateLevelRequest true "请求参数"
// @Success 200 {object} response.Response{data=commission.ConfigView}
// @Router /api/v1/admin/commission-settings/levels/{level} [put]
func (h *CommissionSettingHandler) UpdateLevel(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}
	level, ok := handler.ParseParamID(c, "level", "层级")
	if !ok {
		return
	}

	var req UpdateLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	view, err := h.settingService.UpdateLevel(c.Request.Context(), adminID, int(level), req.Value)
	handler.MustSucceedWithMessage(c, err, "佣金配置已更新", view)
}

// SimulateSaleRequest 模拟销售请求
type SimulateSaleRequest struct {
	BuyerAffiliateID int64           `json:"buyer_affiliate_id" binding:"required"`
	Amount           decimal.Decimal `json:"amount"`
	Persist          bool            `json:"persist"`
}

// Simulate 按当前方案模拟一笔销售的分佣
// @Summary 模拟销售分佣
// @Description persist 为 true 时写入不关联订单的佣金记录
// @Tags 管理-佣金配置
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body SimulateSaleRequest true "请求参数"
// @Success 200 {object} response.Response{data=commission.Simulation}
// @Router /api/v1/admin/commissions/simulate [post]
func (h *CommissionSettingHandler) Simulate(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}

	var req SimulateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	sim, err := h.distributor.Simulate(c.Request.Context(), req.BuyerAffiliateID, req.Amount, req.Persist)
	if err == nil && sim.Persisted {
		logger.Info("模拟销售佣金已入账",
			logger.Module("commission"),
			logger.AdminID(adminID),
			logger.AffiliateID(req.BuyerAffiliateID),
			logger.Amount(sim.Total),
		)
	}
	handler.MustSucceed(c, err, sim)
}

// RegisterRoutes 注册路由，写操作与模拟需要超级管理员
func (h *CommissionSettingHandler) RegisterRoutes(r *gin.RouterGroup, writeGuard gin.HandlerFunc) {
	settings := r.Group("/commission-settings")
	{
		settings.GET("", h.Get)
		settings.PUT("", writeGuard, h.Update)
		settings.PUT("/levels/:level", writeGuard, h.UpdateLevel)
	}
	r.POST("/commissions/simulate", writeGuard, h.Simulate)
}
