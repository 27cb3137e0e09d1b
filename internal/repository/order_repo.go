// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/affiliate-backend/internal/common/database"
	"github.com/dumeirei/affiliate-backend/internal/models"
)

// OrderRepository 订单仓储
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create 创建订单
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// CreateIfAbsent 按支付流水号幂等创建订单，流水号已存在时返回 false
func (r *OrderRepository) CreateIfAbsent(ctx context.Context, order *models.Order) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "payment_ref"}}, DoNothing: true}).
		Create(order)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetByID 根据 ID 获取订单
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取订单
func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ExistsByPaymentRef 支付流水号是否已入账
func (r *OrderRepository) ExistsByPaymentRef(ctx context.Context, paymentRef string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("payment_ref = ?", paymentRef).Count(&count).Error
	return count > 0, err
}

// GetActiveByAffiliateID 获取推广员生效中的订阅
func (r *OrderRepository) GetActiveByAffiliateID(ctx context.Context, affiliateID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ? AND status = ?", affiliateID, models.OrderStatusActive).
		Order("id DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetPendingByAffiliateID 获取推广员最近一笔待支付订单
func (r *OrderRepository) GetPendingByAffiliateID(ctx context.Context, affiliateID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ? AND status = ?", affiliateID, models.OrderStatusPending).
		Order("id DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ActivatePending 将待支付订单置为生效，只有 pending 状态会被更新，返回受影响行数
func (r *OrderRepository) ActivatePending(ctx context.Context, id int64, paymentRef string, amount decimal.Decimal, paidAt, nextBilling time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":            models.OrderStatusActive,
			"payment_ref":       paymentRef,
			"amount":            amount,
			"paid_at":           paidAt,
			"next_billing_date": nextBilling,
		})
	return result.RowsAffected, result.Error
}

// UpdateStatus 以当前状态为条件更新订单状态，返回受影响行数
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, from, to string) (int64, error) {
	updates := map[string]interface{}{"status": to}
	if to == models.OrderStatusCancelled {
		updates["cancelled_at"] = time.Now()
	}
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// UpdateCheckoutURL 保存支付跳转链接
func (r *OrderRepository) UpdateCheckoutURL(ctx context.Context, id int64, url string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("checkout_url", url).Error
}

// ListByAffiliateID 获取推广员的订单
func (r *OrderRepository) ListByAffiliateID(ctx context.Context, affiliateID int64, offset, limit int) ([]*models.Order, int64, error) {
	var orders []*models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("affiliate_id = ?", affiliateID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// preloadAffiliate 管理端列表附带推广员信息
func preloadAffiliate(db *gorm.DB) *gorm.DB {
	return db.Preload("Affiliate")
}

// List 获取订单列表（管理端），filters 支持 affiliate_id、status、order_no 与创建日期区间
func (r *OrderRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Order, int64, error) {
	affiliateID, _ := filters["affiliate_id"].(int64)
	status, _ := filters["status"].(string)
	orderNo, _ := filters["order_no"].(string)

	query := r.db.WithContext(ctx).Model(&models.Order{}).Scopes(
		database.Eq("affiliate_id", affiliateID),
		database.Eq("status", status),
		database.Contains("order_no", orderNo),
		database.CreatedBetween(filters),
	)

	var orders []*models.Order
	total, err := database.FindPage(query, offset, limit, &orders, preloadAffiliate)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// CountByStatus 统计各状态订单数量
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type Result struct {
		Status string
		Count  int64
	}

	var results []Result
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, r := range results {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// SumPaidBetween 指定时间段内已支付订单金额合计与笔数
func (r *OrderRepository) SumPaidBetween(ctx context.Context, start, end time.Time) (decimal.Decimal, int64, error) {
	var total decimal.Decimal
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("COALESCE(SUM(amount), 0), COUNT(*)").
		Where("paid_at IS NOT NULL AND paid_at >= ? AND paid_at < ?", start, end).
		Row().Scan(&total, &count)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return total.Round(2), count, nil
}

// ExistsByAffiliateID 推广员是否有订单
func (r *OrderRepository) ExistsByAffiliateID(ctx context.Context, affiliateID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("affiliate_id = ?", affiliateID).Count(&count).Error
	return count > 0, err
}

// ListPaidBetween 指定时间段内已支付的订单，只取统计所需字段
func (r *OrderRepository) ListPaidBetween(ctx context.Context, start, end time.Time) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("id, affiliate_id, amount, status, paid_at").
		Where("paid_at IS NOT NULL AND paid_at >= ? AND paid_at < ?", start, end).
		Order("paid_at ASC").
		Find(&orders).Error
	return orders, err
}
