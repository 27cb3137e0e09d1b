// Package order 提供订阅订单生命周期服务
package order

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/cache"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/common/tracing"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
	"github.com/dumeirei/affiliate-backend/internal/service/commission"
	"github.com/dumeirei/affiliate-backend/pkg/mercadopago"
)

// 支付通知处理结果
const (
	ResultProcessed = "processed"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
)

// errActivationConflict 激活时触发唯一约束，并发请求已先入账
var errActivationConflict = stderrors.New("order activation conflict")

// 外部订单号前缀
const (
	refPrefixAffiliate = "affiliate_"
	refPrefixOrder     = "order_"
)

// Gateway 支付网关
type Gateway interface {
	Configured() bool
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
	CreatePreference(ctx context.Context, req *mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

// Options 订阅与网关参数
type Options struct {
	PlanName        string
	PlanPrice       decimal.Decimal
	Currency        string
	NotificationURL string
	SuccessURL      string
	FailureURL      string
	GatewayTimeout  time.Duration
}

// LifecycleService 订单生命周期服务
type LifecycleService struct {
	db            *gorm.DB
	orderRepo     *repository.OrderRepository
	affiliateRepo *repository.AffiliateRepository
	distributor   *commission.Distributor
	gateway       Gateway
	locker        *cache.Locker
	opts          Options
}

// NewLifecycleService 创建订单生命周期服务，locker 为 nil 时不加分布式锁
func NewLifecycleService(
	db *gorm.DB,
	orderRepo *repository.OrderRepository,
	affiliateRepo *repository.AffiliateRepository,
	distributor *commission.Distributor,
	gateway Gateway,
	locker *cache.Locker,
	opts Options,
) *LifecycleService {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 10 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "BRL"
	}
	return &LifecycleService{
		db:            db,
		orderRepo:     orderRepo,
		affiliateRepo: affiliateRepo,
		distributor:   distributor,
		gateway:       gateway,
		locker:        locker,
		opts:          opts,
	}
}

// NotificationResult 支付通知处理结果
type NotificationResult struct {
	Result      string                  `json:"result"`
	Reason      string                  `json:"reason,omitempty"`
	PaymentID   string                  `json:"payment_id"`
	AffiliateID int64                   `json:"affiliate_id,omitempty"`
	Order       *models.Order           `json:"order,omitempty"`
	Commissions []commission.Allocation `json:"commissions,omitempty"`
}

func ignored(paymentID, reason string) *NotificationResult {
	return &NotificationResult{Result: ResultIgnored, Reason: reason, PaymentID: paymentID}
}

// HandlePaymentNotification 处理支付通知
// 以网关查询结果为准，重复通知、并发投递都只会产生一笔生效订单和一次分佣
func (s *LifecycleService) HandlePaymentNotification(ctx context.Context, paymentID string) (*NotificationResult, error) {
	ctx, span := tracing.Start(ctx, "order.payment_notification", tracing.WithPaymentID(paymentID))
	result, err := s.handlePayment(ctx, strings.TrimSpace(paymentID))
	if result != nil {
		span.SetAttributes(tracing.WithResult(result.Result))
	}
	tracing.End(span, err)

	if err != nil {
		metrics.RecordWebhookGlobal("error")
		return nil, err
	}
	metrics.RecordWebhookGlobal(result.Result)
	if result.Result == ResultIgnored {
		logger.Debug("支付通知已忽略",
			logger.Module("order"),
			logger.PaymentID(paymentID),
			logger.String("reason", result.Reason),
		)
	}
	return result, nil
}

func (s *LifecycleService) handlePayment(ctx context.Context, paymentID string) (*NotificationResult, error) {
	if paymentID == "" {
		return nil, errors.ErrInvalidParams.WithMessage("支付单号不能为空")
	}
	if s.gateway == nil || !s.gateway.Configured() {
		logger.Error("支付网关未配置，无法处理支付通知",
			logger.Module("order"),
			logger.PaymentID(paymentID),
		)
		return nil, errors.ErrGatewayNotConfigured
	}

	payment, err := s.fetchPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, mercadopago.ErrNotFound) {
			logger.Warn("支付记录不存在，跳过",
				logger.Module("order"),
				logger.PaymentID(paymentID),
			)
			return ignored(paymentID, "payment_not_found"), nil
		}
		logger.Error("查询支付记录失败",
			logger.Module("order"),
			logger.PaymentID(paymentID),
			logger.Err(err),
		)
		return nil, errors.ErrGatewayUnavailable.WithError(err)
	}

	if !payment.IsApproved() {
		logger.Info("支付未完成，跳过",
			logger.Module("order"),
			logger.PaymentID(paymentID),
			logger.String("status", payment.Status),
		)
		return ignored(paymentID, "status_"+payment.Status), nil
	}

	affiliateID, orderNo, err := s.resolveTarget(ctx, payment)
	if err != nil {
		return nil, err
	}
	if affiliateID == 0 {
		logger.Warn("无法识别支付对应的推广员，跳过",
			logger.Module("order"),
			logger.PaymentID(paymentID),
			logger.String("external_reference", payment.ExternalReference),
		)
		return ignored(paymentID, "unknown_affiliate"), nil
	}

	paymentRef := paymentID
	if payment.ID > 0 {
		paymentRef = strconv.FormatInt(payment.ID, 10)
	}

	if s.locker != nil {
		key := cache.BuildKey(cache.KeyPrefixWebhook, strconv.FormatInt(affiliateID, 10), paymentRef)
		lock, err := s.locker.TryLock(ctx, key)
		if err != nil {
			// 锁只是前置保护，Redis 不可用时依赖数据库约束
			logger.Warn("获取支付通知锁失败，继续处理",
				logger.Module("order"),
				logger.PaymentID(paymentRef),
				logger.Err(err),
			)
		} else if lock == nil {
			logger.Info("支付通知正在处理中",
				logger.Module("order"),
				logger.PaymentID(paymentRef),
				logger.AffiliateID(affiliateID),
			)
			tracing.AddEvent(ctx, "webhook.lock_busy", tracing.WithAffiliateID(affiliateID))
			return &NotificationResult{Result: ResultDuplicate, Reason: "in_progress", PaymentID: paymentRef, AffiliateID: affiliateID}, nil
		} else {
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("释放支付通知锁失败",
						logger.Module("order"),
						logger.String("key", lock.Key()),
						logger.Err(err),
					)
				}
			}()
		}
	}

	return s.activate(ctx, payment, paymentRef, affiliateID, orderNo)
}

// fetchPayment 带超时查询支付记录
func (s *LifecycleService) fetchPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	start := time.Now()
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	metrics.RecordGatewayCallGlobal("get_payment", err == nil || errors.Is(err, mercadopago.ErrNotFound), time.Since(start))
	return payment, err
}

// resolveTarget 从 metadata.affiliate_id 或外部订单号解析推广员，解析不到时返回 0
func (s *LifecycleService) resolveTarget(ctx context.Context, payment *mercadopago.Payment) (int64, string, error) {
	var orderNo string
	ref := strings.TrimSpace(payment.ExternalReference)
	if strings.HasPrefix(ref, refPrefixOrder) {
		orderNo = strings.TrimPrefix(ref, refPrefixOrder)
	}

	if id := metadataAffiliateID(payment.Metadata); id > 0 {
		return id, orderNo, nil
	}

	switch {
	case strings.HasPrefix(ref, refPrefixAffiliate):
		id, err := strconv.ParseInt(strings.TrimPrefix(ref, refPrefixAffiliate), 10, 64)
		if err != nil || id <= 0 {
			return 0, "", nil
		}
		return id, "", nil
	case orderNo != "":
		order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return 0, "", nil
			}
			return 0, "", errors.ErrDatabaseError.WithError(err)
		}
		return order.AffiliateID, orderNo, nil
	}
	return 0, "", nil
}

// metadataAffiliateID 网关回传的 metadata 中数字可能是 JSON number 或字符串
func metadataAffiliateID(metadata map[string]interface{}) int64 {
	switch v := metadata["affiliate_id"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case string:
		id, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id
	}
	return 0
}

// activate 在一个事务中生效订单并分佣
func (s *LifecycleService) activate(ctx context.Context, payment *mercadopago.Payment, paymentRef string, affiliateID int64, orderNo string) (*NotificationResult, error) {
	result := &NotificationResult{PaymentID: paymentRef, AffiliateID: affiliateID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		aff, err := s.affiliateRepo.WithTx(tx).FindByID(ctx, affiliateID)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if aff == nil {
			result.Result, result.Reason = ResultIgnored, "affiliate_not_found"
			return nil
		}

		exists, err := orderRepo.ExistsByPaymentRef(ctx, paymentRef)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if exists {
			result.Result, result.Reason = ResultDuplicate, "payment_recorded"
			return nil
		}

		if _, err := orderRepo.GetActiveByAffiliateID(ctx, affiliateID); err == nil {
			result.Result, result.Reason = ResultDuplicate, "subscription_active"
			return nil
		} else if err != gorm.ErrRecordNotFound {
			return errors.ErrDatabaseError.WithError(err)
		}

		pending, err := s.findPending(ctx, orderRepo, affiliateID, orderNo)
		if err != nil {
			return err
		}

		sale := s.saleAmount(payment, pending)
		paidAt := time.Now()
		if payment.DateApproved != nil {
			paidAt = *payment.DateApproved
		}
		nextBilling := paidAt.AddDate(0, 1, 0)

		var order *models.Order
		if pending != nil {
			rows, err := orderRepo.ActivatePending(ctx, pending.ID, paymentRef, sale, paidAt, nextBilling)
			if err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errActivationConflict
				}
				return errors.ErrDatabaseError.WithError(err)
			}
			if rows == 0 {
				result.Result, result.Reason = ResultDuplicate, "order_not_pending"
				return nil
			}
			order = pending
			order.Status = models.OrderStatusActive
			order.PaymentRef = &paymentRef
			order.Amount = sale
			order.PaidAt = &paidAt
			order.NextBillingDate = &nextBilling
		} else {
			order = &models.Order{
				OrderNo:         utils.GenerateOrderNo("SUB"),
				AffiliateID:     affiliateID,
				PlanName:        s.opts.PlanName,
				Amount:          sale,
				Currency:        s.currency(payment),
				Status:          models.OrderStatusActive,
				PaymentRef:      &paymentRef,
				PaidAt:          &paidAt,
				NextBillingDate: &nextBilling,
			}
			created, err := orderRepo.CreateIfAbsent(ctx, order)
			if err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errActivationConflict
				}
				return errors.ErrDatabaseError.WithError(err)
			}
			if !created {
				result.Result, result.Reason = ResultDuplicate, "payment_recorded"
				return nil
			}
		}

		allocations, err := s.distributor.Distribute(ctx, tx, affiliateID, sale, &order.ID)
		if err != nil {
			return err
		}

		result.Result = ResultProcessed
		result.Order = order
		result.Commissions = allocations
		return nil
	})
	if stderrors.Is(err, errActivationConflict) {
		result.Result, result.Reason = ResultDuplicate, "payment_recorded"
		result.Order, result.Commissions = nil, nil
		err = nil
	}
	if err != nil {
		if errors.IsKind(err, errors.KindPersistence) || errors.IsKind(err, errors.KindConfiguration) {
			logger.Error("支付通知入账失败",
				logger.Module("order"),
				logger.PaymentID(paymentRef),
				logger.AffiliateID(affiliateID),
				logger.Err(err),
			)
		}
		return nil, err
	}

	switch result.Result {
	case ResultProcessed:
		metrics.RecordOrderGlobal(models.OrderStatusActive)
		logger.Info("订阅已生效",
			logger.Module("order"),
			logger.PaymentID(paymentRef),
			logger.AffiliateID(affiliateID),
			logger.OrderID(result.Order.ID),
			logger.Amount(result.Order.Amount),
			logger.Int("commissions", len(result.Commissions)),
		)
	default:
		logger.Info("支付通知未产生新订单",
			logger.Module("order"),
			logger.PaymentID(paymentRef),
			logger.AffiliateID(affiliateID),
			logger.String("result", result.Result),
			logger.String("reason", result.Reason),
		)
	}
	return result, nil
}

// findPending 优先使用外部订单号指向的待支付订单，否则取推广员最近一笔
func (s *LifecycleService) findPending(ctx context.Context, orderRepo *repository.OrderRepository, affiliateID int64, orderNo string) (*models.Order, error) {
	if orderNo != "" {
		order, err := orderRepo.GetByOrderNo(ctx, orderNo)
		if err == nil && order.AffiliateID == affiliateID && order.Status == models.OrderStatusPending {
			return order, nil
		}
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
	}

	order, err := orderRepo.GetPendingByAffiliateID(ctx, affiliateID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return order, nil
}

// saleAmount 依次取网关实付金额、待支付订单金额、套餐价格
func (s *LifecycleService) saleAmount(payment *mercadopago.Payment, pending *models.Order) decimal.Decimal {
	if payment.TransactionAmount > 0 {
		return decimal.NewFromFloat(payment.TransactionAmount).Round(2)
	}
	if pending != nil && pending.Amount.Sign() > 0 {
		return pending.Amount
	}
	return s.opts.PlanPrice
}

func (s *LifecycleService) currency(payment *mercadopago.Payment) string {
	if payment.CurrencyID != "" {
		return payment.CurrencyID
	}
	return s.opts.Currency
}

// CheckoutResult 收银台信息
type CheckoutResult struct {
	Order       *models.Order `json:"order"`
	CheckoutURL string        `json:"checkout_url"`
}

// Checkout 创建待支付订单并生成支付链接，已有待支付订单时复用
func (s *LifecycleService) Checkout(ctx context.Context, affiliateID int64) (*CheckoutResult, error) {
	aff, err := s.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrAffiliateNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if !aff.IsActive {
		return nil, errors.ErrAffiliateInactive
	}

	if _, err := s.orderRepo.GetActiveByAffiliateID(ctx, affiliateID); err == nil {
		return nil, errors.ErrSubscriptionActive
	} else if err != gorm.ErrRecordNotFound {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if s.gateway == nil || !s.gateway.Configured() {
		return nil, errors.ErrGatewayNotConfigured
	}

	order, err := s.orderRepo.GetPendingByAffiliateID(ctx, affiliateID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if order != nil && order.CheckoutURL != nil && *order.CheckoutURL != "" {
		return &CheckoutResult{Order: order, CheckoutURL: *order.CheckoutURL}, nil
	}

	if order == nil {
		if s.opts.PlanPrice.Sign() <= 0 {
			return nil, errors.ErrConfiguration.WithMessage("订阅价格未配置")
		}
		order = &models.Order{
			OrderNo:     utils.GenerateOrderNo("SUB"),
			AffiliateID: affiliateID,
			PlanName:    s.opts.PlanName,
			Amount:      s.opts.PlanPrice,
			Currency:    s.opts.Currency,
			Status:      models.OrderStatusPending,
		}
		if err := s.orderRepo.Create(ctx, order); err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		metrics.RecordOrderGlobal(models.OrderStatusPending)
	}

	pref, err := s.createPreference(ctx, aff, order)
	if err != nil {
		logger.Error("创建支付链接失败",
			logger.Module("order"),
			logger.AffiliateID(affiliateID),
			logger.OrderNo(order.OrderNo),
			logger.Err(err),
		)
		return nil, errors.ErrGatewayUnavailable.WithError(err)
	}

	url := pref.InitPoint
	if err := s.orderRepo.UpdateCheckoutURL(ctx, order.ID, url); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	order.CheckoutURL = &url

	logger.Info("支付链接已生成",
		logger.Module("order"),
		logger.AffiliateID(affiliateID),
		logger.OrderNo(order.OrderNo),
		logger.String("preference_id", pref.ID),
	)
	return &CheckoutResult{Order: order, CheckoutURL: url}, nil
}

func (s *LifecycleService) createPreference(ctx context.Context, aff *models.Affiliate, order *models.Order) (*mercadopago.Preference, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	req := &mercadopago.PreferenceRequest{
		Items: []mercadopago.Item{{
			ID:         order.OrderNo,
			Title:      order.PlanName,
			Quantity:   1,
			UnitPrice:  order.Amount.InexactFloat64(),
			CurrencyID: order.Currency,
		}},
		ExternalReference: refPrefixOrder + order.OrderNo,
		NotificationURL:   s.opts.NotificationURL,
		Metadata: map[string]interface{}{
			"affiliate_id": aff.ID,
			"order_no":     order.OrderNo,
		},
	}
	if aff.Email != nil {
		req.Payer = &mercadopago.Payer{Email: *aff.Email}
	}
	if s.opts.SuccessURL != "" || s.opts.FailureURL != "" {
		req.BackURLs = &mercadopago.BackURLs{
			Success: s.opts.SuccessURL,
			Failure: s.opts.FailureURL,
			Pending: s.opts.SuccessURL,
		}
		if s.opts.SuccessURL != "" {
			req.AutoReturn = "approved"
		}
	}

	start := time.Now()
	pref, err := s.gateway.CreatePreference(ctx, req)
	metrics.RecordGatewayCallGlobal("create_preference", err == nil, time.Since(start))
	return pref, err
}

// UpdateStatus 管理员修改订单状态，以当前状态为条件更新
func (s *LifecycleService) UpdateStatus(ctx context.Context, operatorID, orderID int64, status string) (*models.Order, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, errors.ErrInvalidParams.WithMessagef("无效的订单状态: %s", status)
	}

	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanTransitTo(status) {
		return nil, errors.ErrOrderStatusError.WithMessagef("订单状态不能从 %s 变更为 %s", order.Status, status)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		// 每个推广员同时只能有一个生效订阅
		if status == models.OrderStatusActive {
			active, err := orderRepo.GetActiveByAffiliateID(ctx, order.AffiliateID)
			if err == nil && active.ID != orderID {
				return errors.ErrSubscriptionActive.WithMessagef("推广员已有生效中的订单 %s", active.OrderNo)
			}
			if err != nil && err != gorm.ErrRecordNotFound {
				return errors.ErrDatabaseError.WithError(err)
			}
		}

		rows, err := orderRepo.UpdateStatus(ctx, orderID, order.Status, status)
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.ErrSubscriptionActive
			}
			return errors.ErrDatabaseError.WithError(err)
		}
		if rows == 0 {
			return errors.ErrOrderStatusError.WithMessage("订单状态已变化，请刷新后重试")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordOrderGlobal(status)
	logger.Info("订单状态已更新",
		logger.Module("order"),
		logger.AdminID(operatorID),
		logger.OrderID(orderID),
		logger.String("from", order.Status),
		logger.String("to", status),
	)
	return s.GetByID(ctx, orderID)
}

// GetByID 获取订单
func (s *LifecycleService) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrOrderNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return order, nil
}

// OrderDetail 管理端订单详情
type OrderDetail struct {
	*models.Order
	Commissions []*models.Commission `json:"commissions"`
}

// GetDetail 订单及其产生的佣金
func (s *LifecycleService) GetDetail(ctx context.Context, id int64) (*OrderDetail, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	commissions, err := s.distributor.ForOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Commissions: commissions}, nil
}

// GetActiveOrder 获取推广员生效中的订阅，没有时返回 nil
func (s *LifecycleService) GetActiveOrder(ctx context.Context, affiliateID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetActiveByAffiliateID(ctx, affiliateID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return order, nil
}

// ListByAffiliate 推广员订单列表
func (s *LifecycleService) ListByAffiliate(ctx context.Context, affiliateID int64, offset, limit int) ([]*models.Order, int64, error) {
	list, total, err := s.orderRepo.ListByAffiliateID(ctx, affiliateID, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

// List 管理端订单列表
func (s *LifecycleService) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Order, int64, error) {
	list, total, err := s.orderRepo.List(ctx, offset, limit, filters)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}
