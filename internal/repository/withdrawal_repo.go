// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/database"
	"github.com/dumeirei/affiliate-backend/internal/models"
)

// WithdrawalRepository 提现仓储
type WithdrawalRepository struct {
	db *gorm.DB
}

// NewWithdrawalRepository 创建提现仓储
func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *WithdrawalRepository) WithTx(tx *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: tx}
}

// Create 创建提现记录
func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

// GetByID 根据 ID 获取提现记录
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.WithContext(ctx).First(&withdrawal, id).Error
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// GetByIDWithAffiliate 根据 ID 获取提现记录（包含推广员）
func (r *WithdrawalRepository) GetByIDWithAffiliate(ctx context.Context, id int64) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.WithContext(ctx).Preload("Affiliate").First(&withdrawal, id).Error
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// SumHeldByAffiliateID 统计占用余额的提现合计（待处理 + 已打款）
func (r *WithdrawalRepository) SumHeldByAffiliateID(ctx context.Context, affiliateID int64) (decimal.Decimal, error) {
	return r.sumByAffiliate(ctx, affiliateID, models.WithdrawalHoldStatuses...)
}

// SumByAffiliateAndStatus 按状态统计推广员提现合计
func (r *WithdrawalRepository) SumByAffiliateAndStatus(ctx context.Context, affiliateID int64, status string) (decimal.Decimal, error) {
	return r.sumByAffiliate(ctx, affiliateID, status)
}

func (r *WithdrawalRepository) sumByAffiliate(ctx context.Context, affiliateID int64, statuses ...string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("affiliate_id = ? AND status IN ?", affiliateID, statuses).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Round(2), nil
}

// Resolve 处理待处理的提现，只有 pending 状态会被更新，返回受影响行数
func (r *WithdrawalRepository) Resolve(ctx context.Context, id int64, status string, operatorID int64, reason *string) (int64, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"operator_id": operatorID,
		"resolved_at": now,
	}
	if reason != nil {
		updates["reject_reason"] = *reason
	}

	result := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalStatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// ListByAffiliateID 获取推广员的提现记录
func (r *WithdrawalRepository) ListByAffiliateID(ctx context.Context, affiliateID int64, offset, limit int, status string) ([]*models.Withdrawal, int64, error) {
	var withdrawals []*models.Withdrawal
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("affiliate_id = ?", affiliateID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&withdrawals).Error; err != nil {
		return nil, 0, err
	}

	return withdrawals, total, nil
}

// List 获取提现列表，filters 支持 affiliate_id、status 与创建日期区间
func (r *WithdrawalRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Withdrawal, int64, error) {
	affiliateID, _ := filters["affiliate_id"].(int64)
	status, _ := filters["status"].(string)

	query := r.db.WithContext(ctx).Model(&models.Withdrawal{}).Scopes(
		database.Eq("affiliate_id", affiliateID),
		database.Eq("status", status),
		database.CreatedBetween(filters),
	)

	var withdrawals []*models.Withdrawal
	total, err := database.FindPage(query, offset, limit, &withdrawals, preloadAffiliate)
	if err != nil {
		return nil, 0, err
	}
	return withdrawals, total, nil
}

// CountByStatus 按状态统计提现数量
func (r *WithdrawalRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// SumByStatusBetween 指定时间段内某状态的提现合计
func (r *WithdrawalRepository) SumByStatusBetween(ctx context.Context, status string, start, end time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ? AND created_at >= ? AND created_at < ?", status, start, end).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Round(2), nil
}

// ExistsByAffiliateID 推广员是否有提现记录
func (r *WithdrawalRepository) ExistsByAffiliateID(ctx context.Context, affiliateID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("affiliate_id = ?", affiliateID).Count(&count).Error
	return count > 0, err
}
