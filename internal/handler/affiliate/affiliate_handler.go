// Package affiliate 提供推广员端 HTTP Handler
package affiliate

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	affiliateService "github.com/dumeirei/affiliate-backend/internal/service/affiliate"
	"github.com/dumeirei/affiliate-backend/internal/service/ledger"
	"github.com/dumeirei/affiliate-backend/internal/service/network"
	orderService "github.com/dumeirei/affiliate-backend/internal/service/order"
	"github.com/dumeirei/affiliate-backend/internal/service/withdrawal"
)

// Handler 推广员处理器
type Handler struct {
	affiliateService  *affiliateService.Service
	networkService    *network.Service
	ledgerService     *ledger.Service
	withdrawalService *withdrawal.Service
	orderService      *orderService.LifecycleService
}

// NewHandler 创建推广员处理器
func NewHandler(
	affiliateSvc *affiliateService.Service,
	networkSvc *network.Service,
	ledgerSvc *ledger.Service,
	withdrawalSvc *withdrawal.Service,
	orderSvc *orderService.LifecycleService,
) *Handler {
	return &Handler{
		affiliateService:  affiliateSvc,
		networkService:    networkSvc,
		ledgerService:     ledgerSvc,
		withdrawalService: withdrawalSvc,
		orderService:      orderSvc,
	}
}

// currentAffiliateID 当前登录用户对应的推广员 ID
func (h *Handler) currentAffiliateID(c *gin.Context) (int64, bool) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return 0, false
	}
	aff, err := h.affiliateService.GetByUserID(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return 0, false
	}
	return aff.ID, true
}

// RegisterRequest 注册推广员请求
type RegisterRequest struct {
	FullName     string `json:"full_name" binding:"required,max=100"`
	Email        string `json:"email" binding:"omitempty,email"`
	ReferralCode string `json:"referral_code"` // 上级推荐码（可选）
}

// Register 注册成为推广员
// @Summary 注册成为推广员
// @Tags 推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body RegisterRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/affiliate/register [post]
func (h *Handler) Register(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	aff, err := h.affiliateService.Register(c.Request.Context(), &affiliateService.RegisterRequest{
		UserID:       userID,
		FullName:     req.FullName,
		Email:        req.Email,
		ReferralCode: req.ReferralCode,
	})
	handler.MustSucceed(c, err, aff)
}

// GetInfo 获取推广员资料
// @Summary 获取推广员资料
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=affiliateService.Profile}
// @Router /api/v1/affiliate/info [get]
func (h *Handler) GetInfo(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	profile, err := h.affiliateService.GetProfile(c.Request.Context(), userID)
	handler.MustSucceed(c, err, profile)
}

// GetDashboard 推广员首页
// @Summary 推广员首页
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=affiliateService.Dashboard}
// @Router /api/v1/affiliate/dashboard [get]
func (h *Handler) GetDashboard(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	dashboard, err := h.affiliateService.GetDashboard(c.Request.Context(), userID)
	handler.MustSucceed(c, err, dashboard)
}

// NetworkResponse 团队树
type NetworkResponse struct {
	Tree  *network.Node  `json:"tree"`
	Stats *network.Stats `json:"stats"`
}

// GetNetwork 团队树
// @Summary 团队树
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Param depth query int false "展开层数"
// @Success 200 {object} response.Response{data=NetworkResponse}
// @Router /api/v1/affiliate/network [get]
func (h *Handler) GetNetwork(c *gin.Context) {
	affiliateID, ok := h.currentAffiliateID(c)
	if !ok {
		return
	}

	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "0"))
	ctx := c.Request.Context()

	tree, err := h.networkService.Subtree(ctx, affiliateID, depth)
	if handler.HandleError(c, err) {
		return
	}
	stats, err := h.networkService.GetStats(ctx, affiliateID)
	handler.MustSucceed(c, err, &NetworkResponse{Tree: tree, Stats: stats})
}

// GetPerformance 业绩数据
// @Summary 业绩数据
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=affiliateService.Performance}
// @Router /api/v1/affiliate/performance [get]
func (h *Handler) GetPerformance(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	performance, err := h.affiliateService.GetPerformance(c.Request.Context(), userID)
	handler.MustSucceed(c, err, performance)
}

// GetInvite 推广链接与二维码
// @Summary 推广链接与二维码
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=affiliateService.InviteInfo}
// @Router /api/v1/affiliate/invite [get]
func (h *Handler) GetInvite(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	info, err := h.affiliateService.GetInviteInfo(c.Request.Context(), userID)
	handler.MustSucceed(c, err, info)
}

// PayoutKeyRequest 收款账户请求
type PayoutKeyRequest struct {
	KeyType string `json:"key_type" binding:"required,oneof=cpf cnpj email phone random"`
	Key     string `json:"key" binding:"required,max=140"`
}

// UpdatePayoutKey 设置收款账户
// @Summary 设置收款账户
// @Tags 推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body PayoutKeyRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/v1/affiliate/payout-key [put]
func (h *Handler) UpdatePayoutKey(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req PayoutKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	masked, err := h.affiliateService.UpdatePayoutKey(c.Request.Context(), userID, req.KeyType, req.Key)
	handler.MustSucceed(c, err, gin.H{"key_type": req.KeyType, "payout_key_masked": masked})
}

// GetBalance 余额汇总
// @Summary 余额汇总
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=ledger.Summary}
// @Router /api/v1/affiliate/balance [get]
func (h *Handler) GetBalance(c *gin.Context) {
	affiliateID, ok := h.currentAffiliateID(c)
	if !ok {
		return
	}

	summary, err := h.ledgerService.GetSummary(c.Request.Context(), affiliateID)
	handler.MustSucceed(c, err, summary)
}

// ListCommissions 佣金明细
// @Summary 佣金明细
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param status query string false "状态: pending/paid"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/affiliate/commissions [get]
func (h *Handler) ListCommissions(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.affiliateService.ListCommissions(c.Request.Context(), userID, p.Offset(), p.Limit(), c.Query("status"))
	handler.MustSucceedPage(c, err, list, total, p)
}

// WithdrawRequest 提现请求
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// RequestWithdrawal 申请提现
// @Summary 申请提现
// @Tags 推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body WithdrawRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Withdrawal}
// @Router /api/v1/affiliate/withdrawals [post]
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	affiliateID, ok := h.currentAffiliateID(c)
	if !ok {
		return
	}

	w, err := h.withdrawalService.Request(c.Request.Context(), affiliateID, req.Amount)
	handler.MustSucceedWithMessage(c, err, "提现申请已提交", w)
}

// ListWithdrawals 提现记录
// @Summary 提现记录
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param status query string false "状态: pending/paid/rejected"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/affiliate/withdrawals [get]
func (h *Handler) ListWithdrawals(c *gin.Context) {
	affiliateID, ok := h.currentAffiliateID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.withdrawalService.ListByAffiliate(c.Request.Context(), affiliateID, p.Offset(), p.Limit(), c.Query("status"))
	handler.MustSucceedPage(c, err, list, total, p)
}

// Checkout 订阅收银台
// @Summary 订阅收银台
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=orderService.CheckoutResult}
// @Router /api/v1/affiliate/checkout [post]
func (h *Handler) Checkout(c *gin.Context) {
	affiliateID, ok := h.currentAffiliateID(c)
	if !ok {
		return
	}

	result, err := h.orderService.Checkout(c.Request.Context(), affiliateID)
	handler.MustSucceed(c, err, result)
}

// ListOrders 订阅订单
// @Summary 订阅订单
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/affiliate/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	affiliateID, ok := h.currentAffiliateID(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	list, total, err := h.orderService.ListByAffiliate(c.Request.Context(), affiliateID, p.Offset(), p.Limit())
	handler.MustSucceedPage(c, err, list, total, p)
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, withdrawLimiter gin.HandlerFunc) {
	aff := r.Group("/affiliate")
	{
		aff.POST("/register", h.Register)
		aff.GET("/info", h.GetInfo)
		aff.GET("/dashboard", h.GetDashboard)
		aff.GET("/network", h.GetNetwork)
		aff.GET("/performance", h.GetPerformance)
		aff.GET("/invite", h.GetInvite)
		aff.PUT("/payout-key", h.UpdatePayoutKey)
		aff.GET("/balance", h.GetBalance)
		aff.GET("/commissions", h.ListCommissions)
		aff.GET("/withdrawals", h.ListWithdrawals)
		aff.POST("/checkout", h.Checkout)
		aff.GET("/orders", h.ListOrders)

		if withdrawLimiter != nil {
			aff.POST("/withdrawals", withdrawLimiter, h.RequestWithdrawal)
		} else {
			aff.POST("/withdrawals", h.RequestWithdrawal)
		}
	}
}
