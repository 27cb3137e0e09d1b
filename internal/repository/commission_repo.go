// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// CommissionRepository 佣金仓储
type CommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓储
func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *CommissionRepository) WithTx(tx *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: tx}
}

// LevelSum 按层级汇总
type LevelSum struct {
	Level int             `json:"level"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// AffiliateEarning 推广员收益汇总
type AffiliateEarning struct {
	AffiliateID int64           `json:"affiliate_id"`
	Count       int64           `json:"count"`
	Total       decimal.Decimal `json:"total"`
}

// CreateBatch 批量创建佣金记录
func (r *CommissionRepository) CreateBatch(ctx context.Context, commissions []*models.Commission) error {
	if len(commissions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&commissions).Error
}

// ListByOrderID 获取订单产生的佣金，按层级升序
func (r *CommissionRepository) ListByOrderID(ctx context.Context, orderID int64) ([]*models.Commission, error) {
	var commissions []*models.Commission
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("level ASC").Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

// ListByAffiliateID 获取推广员的佣金记录
func (r *CommissionRepository) ListByAffiliateID(ctx context.Context, affiliateID int64, offset, limit int, status string) ([]*models.Commission, int64, error) {
	var commissions []*models.Commission
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Commission{}).Where("affiliate_id = ?", affiliateID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&commissions).Error; err != nil {
		return nil, 0, err
	}

	return commissions, total, nil
}

// ListByAffiliateSince 获取推广员某时间之后的佣金
func (r *CommissionRepository) ListByAffiliateSince(ctx context.Context, affiliateID int64, since time.Time) ([]*models.Commission, error) {
	var commissions []*models.Commission
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ? AND created_at >= ?", affiliateID, since).
		Order("created_at ASC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

// SumByAffiliateID 统计推广员佣金合计，status 为空时统计全部
func (r *CommissionRepository) SumByAffiliateID(ctx context.Context, affiliateID int64, status string) (decimal.Decimal, error) {
	query := r.db.WithContext(ctx).Model(&models.Commission{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("affiliate_id = ?", affiliateID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total decimal.Decimal
	if err := query.Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total.Round(2), nil
}

// SumByLevelForAffiliate 按层级汇总推广员佣金
func (r *CommissionRepository) SumByLevelForAffiliate(ctx context.Context, affiliateID int64) ([]LevelSum, error) {
	var rows []LevelSum
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Select("level, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("affiliate_id = ?", affiliateID).
		Group("level").
		Order("level ASC").
		Scan(&rows).Error
	return roundLevelSums(rows), err
}

// SumByLevel 按层级汇总指定时间段内的佣金
func (r *CommissionRepository) SumByLevel(ctx context.Context, start, end time.Time) ([]LevelSum, error) {
	var rows []LevelSum
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Select("level, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("level").
		Order("level ASC").
		Scan(&rows).Error
	return roundLevelSums(rows), err
}

// TopAffiliates 指定时间段内佣金最高的推广员
func (r *CommissionRepository) TopAffiliates(ctx context.Context, start, end time.Time, limit int) ([]AffiliateEarning, error) {
	var rows []AffiliateEarning
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Select("affiliate_id, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("affiliate_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	for i := range rows {
		rows[i].Total = rows[i].Total.Round(2)
	}
	return rows, err
}

// SumBetween 指定时间段内的佣金合计
func (r *CommissionRepository) SumBetween(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("created_at >= ? AND created_at < ?", start, end).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Round(2), nil
}

// ExistsByAffiliateID 推广员是否有佣金记录（作为收款方或购买方）
func (r *CommissionRepository) ExistsByAffiliateID(ctx context.Context, affiliateID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("affiliate_id = ? OR buyer_affiliate_id = ?", affiliateID, affiliateID).
		Count(&count).Error
	return count > 0, err
}

func roundLevelSums(rows []LevelSum) []LevelSum {
	for i := range rows {
		rows[i].Total = rows[i].Total.Round(2)
	}
	return rows
}
