// Package payment 提供支付通知与支付确认 HTTP Handler
package payment

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/models"
	affiliateService "github.com/dumeirei/affiliate-backend/internal/service/affiliate"
	orderService "github.com/dumeirei/affiliate-backend/internal/service/order"
	"github.com/dumeirei/affiliate-backend/pkg/mercadopago"
)

// Handler 支付处理器
type Handler struct {
	orderService     *orderService.LifecycleService
	affiliateService *affiliateService.Service
}

// NewHandler 创建支付处理器
func NewHandler(orderSvc *orderService.LifecycleService, affiliateSvc *affiliateService.Service) *Handler {
	return &Handler{
		orderService:     orderSvc,
		affiliateService: affiliateSvc,
	}
}

// WebhookResponse 通知处理结果
type WebhookResponse struct {
	Result    string `json:"result"`
	Reason    string `json:"reason,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

// MercadoPagoWebhook Mercado Pago 支付通知
// 非支付类通知和无法识别的通知返回 200，避免网关重复投递；
// 网关未配置返回 500，查询支付失败返回 502，网关会稍后重试
// @Summary Mercado Pago 支付通知
// @Tags 支付
// @Accept json
// @Produce json
// @Success 200 {object} response.Response{data=WebhookResponse}
// @Failure 500 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/webhooks/mercadopago [post]
func (h *Handler) MercadoPagoWebhook(c *gin.Context) {
	paymentID, kind := h.notificationTarget(c)
	if paymentID == "" {
		logger.Info("忽略支付通知",
			logger.Module("webhook"),
			logger.String("type", kind),
		)
		response.Success(c, &WebhookResponse{Result: orderService.ResultIgnored, Reason: "not_payment"})
		return
	}

	result, err := h.orderService.HandlePaymentNotification(c.Request.Context(), paymentID)
	if handler.HandleError(c, err) {
		return
	}

	response.Success(c, &WebhookResponse{
		Result:    result.Result,
		Reason:    result.Reason,
		PaymentID: result.PaymentID,
	})
}

// notificationTarget 从请求体或查询参数中取出支付 ID，非支付通知返回空
func (h *Handler) notificationTarget(c *gin.Context) (string, string) {
	body, err := io.ReadAll(c.Request.Body)
	if err == nil && len(body) > 0 {
		if n, err := mercadopago.ParseNotification(body); err == nil {
			if n.IsPayment() {
				return n.DataID(), n.Type
			}
			if n.Type != "" || n.Action != "" {
				return "", n.Type
			}
		}
	}

	// 旧版 IPN 通过查询参数投递
	topic := c.Query("type")
	if topic == "" {
		topic = c.Query("topic")
	}
	if topic != "payment" {
		return "", topic
	}
	id := c.Query("data.id")
	if id == "" {
		id = c.Query("id")
	}
	return id, topic
}

// VerifyResponse 支付确认结果
type VerifyResponse struct {
	Result    string        `json:"result"`
	Reason    string        `json:"reason,omitempty"`
	PaymentID string        `json:"payment_id"`
	Order     *models.Order `json:"order,omitempty"`
}

// VerifyPayment 支付完成回跳后确认支付
// 与支付通知走同一处理流程，重复调用不会重复开通或分佣
// @Summary 确认支付
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param id path string true "支付ID"
// @Success 200 {object} response.Response{data=VerifyResponse}
// @Router /api/v1/payments/verify/{id} [get]
func (h *Handler) VerifyPayment(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}
	paymentID := c.Param("id")
	if paymentID == "" {
		response.BadRequest(c, "无效的支付ID")
		return
	}

	ctx := c.Request.Context()
	aff, err := h.affiliateService.GetByUserID(ctx, userID)
	if handler.HandleError(c, err) {
		return
	}

	result, err := h.orderService.HandlePaymentNotification(ctx, paymentID)
	if handler.HandleError(c, err) {
		return
	}

	resp := &VerifyResponse{
		Result:    result.Result,
		Reason:    result.Reason,
		PaymentID: result.PaymentID,
	}
	if result.AffiliateID == aff.ID {
		if result.Order != nil {
			resp.Order = result.Order
		} else {
			active, err := h.orderService.GetActiveOrder(ctx, aff.ID)
			if handler.HandleError(c, err) {
				return
			}
			resp.Order = active
		}
	}
	response.Success(c, resp)
}

// RegisterWebhookRoutes 注册通知路由（无需认证）
func (h *Handler) RegisterWebhookRoutes(r *gin.RouterGroup, limiter gin.HandlerFunc) {
	webhooks := r.Group("/webhooks")
	if limiter != nil {
		webhooks.Use(limiter)
	}
	webhooks.POST("/mercadopago", h.MercadoPagoWebhook)
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/payments/verify/:id", h.VerifyPayment)
}
