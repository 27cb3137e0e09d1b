// Package repository 提供数据访问层
package repository

import (
	"cmp"
	"context"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// AffiliateRepository 推广员仓储
type AffiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository 创建推广员仓储
func NewAffiliateRepository(db *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *AffiliateRepository) WithTx(tx *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{db: tx}
}

// Create 创建推广员
func (r *AffiliateRepository) Create(ctx context.Context, affiliate *models.Affiliate) error {
	return r.db.WithContext(ctx).Create(affiliate).Error
}

// GetByID 根据 ID 获取推广员
func (r *AffiliateRepository) GetByID(ctx context.Context, id int64) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).First(&affiliate, id).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// GetByUserID 根据用户 ID 获取推广员
func (r *AffiliateRepository) GetByUserID(ctx context.Context, userID int64) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// GetByReferralCode 根据推荐码获取推广员
func (r *AffiliateRepository) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// ExistsByUserID 检查用户是否已是推广员
func (r *AffiliateRepository) ExistsByUserID(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("user_id = ?", userID).Count(&count).Error
	return count > 0, err
}

// ExistsByReferralCode 检查推荐码是否已存在
func (r *AffiliateRepository) ExistsByReferralCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("referral_code = ?", code).Count(&count).Error
	return count > 0, err
}

// FindByID 根据 ID 查找推广员，不存在时返回 nil
func (r *AffiliateRepository) FindByID(ctx context.Context, id int64) (*models.Affiliate, error) {
	affiliate, err := r.GetByID(ctx, id)
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return affiliate, err
}

// inBatchSize IN 查询每批的 ID 数量，宽层级时分批以免超出绑定参数上限
const inBatchSize = 1000

// ListChildren 批量获取多个推广员的直属下级，按 ID 升序
func (r *AffiliateRepository) ListChildren(ctx context.Context, sponsorIDs []int64) ([]*models.Affiliate, error) {
	children := make([]*models.Affiliate, 0)
	for batch := range slices.Chunk(sponsorIDs, inBatchSize) {
		var part []*models.Affiliate
		err := r.db.WithContext(ctx).
			Where("sponsor_id IN ?", batch).
			Order("id ASC").
			Find(&part).Error
		if err != nil {
			return nil, err
		}
		children = append(children, part...)
	}
	if len(sponsorIDs) > inBatchSize {
		slices.SortFunc(children, func(a, b *models.Affiliate) int { return cmp.Compare(a.ID, b.ID) })
	}
	return children, nil
}

// ListChildIDs 批量获取直属下级 ID
func (r *AffiliateRepository) ListChildIDs(ctx context.Context, sponsorIDs []int64) ([]int64, error) {
	ids := make([]int64, 0)
	for batch := range slices.Chunk(sponsorIDs, inBatchSize) {
		var part []int64
		err := r.db.WithContext(ctx).Model(&models.Affiliate{}).
			Where("sponsor_id IN ?", batch).
			Pluck("id", &part).Error
		if err != nil {
			return nil, err
		}
		ids = append(ids, part...)
	}
	return ids, nil
}

// CountChildren 统计直属下级数量
func (r *AffiliateRepository) CountChildren(ctx context.Context, sponsorID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("sponsor_id = ?", sponsorID).Count(&count).Error
	return count, err
}

// List 获取推广员列表
func (r *AffiliateRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Affiliate, int64, error) {
	var affiliates []*models.Affiliate
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Affiliate{})

	if active, ok := filters["is_active"].(bool); ok {
		query = query.Where("is_active = ?", active)
	}
	if sponsorID, ok := filters["sponsor_id"].(int64); ok {
		query = query.Where("sponsor_id = ?", sponsorID)
	}
	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("full_name LIKE ? OR referral_code LIKE ? OR email LIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&affiliates).Error; err != nil {
		return nil, 0, err
	}

	return affiliates, total, nil
}

// SetActive 启用/停用推广员
func (r *AffiliateRepository) SetActive(ctx context.Context, id int64, active bool) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("id = ?", id).Update("is_active", active)
	return result.RowsAffected, result.Error
}

// UpdatePayoutKey 更新收款账户
func (r *AffiliateRepository) UpdatePayoutKey(ctx context.Context, id int64, keyType, encrypted string) error {
	return r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payout_key_type":      keyType,
			"payout_key_encrypted": encrypted,
		}).Error
}

// UpdateReferralCode 更新推荐码
func (r *AffiliateRepository) UpdateReferralCode(ctx context.Context, id int64, code string) error {
	return r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("id = ?", id).Update("referral_code", code).Error
}

// BumpLedgerVersion 以 CAS 方式递增账本版本号，返回 false 表示版本已被其他事务修改
func (r *AffiliateRepository) BumpLedgerVersion(ctx context.Context, id, expected int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ? AND ledger_version = ?", id, expected).
		UpdateColumn("ledger_version", gorm.Expr("ledger_version + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete 删除推广员
func (r *AffiliateRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Affiliate{}, id).Error
}

// Count 统计推广员数量
func (r *AffiliateRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).Count(&count).Error
	return count, err
}

// CountCreatedBefore 指定时间之前注册的推广员数量
func (r *AffiliateRepository) CountCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("created_at < ?", before).Count(&count).Error
	return count, err
}

// ListCreatedBetween 指定时间段内注册的推广员
func (r *AffiliateRepository) ListCreatedBetween(ctx context.Context, start, end time.Time) ([]*models.Affiliate, error) {
	var list []*models.Affiliate
	err := r.db.WithContext(ctx).
		Select("id, sponsor_id, is_active, created_at").
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

// GetByIDs 批量获取推广员
func (r *AffiliateRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.Affiliate, error) {
	var list []*models.Affiliate
	if len(ids) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error
	return list, err
}
