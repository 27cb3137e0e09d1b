// Package repository 提供数据访问层
package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// CommissionSettingRepository 佣金配置仓储
type CommissionSettingRepository struct {
	db *gorm.DB
}

// NewCommissionSettingRepository 创建佣金配置仓储
func NewCommissionSettingRepository(db *gorm.DB) *CommissionSettingRepository {
	return &CommissionSettingRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *CommissionSettingRepository) WithTx(tx *gorm.DB) *CommissionSettingRepository {
	return &CommissionSettingRepository{db: tx}
}

// GetByTenantID 获取租户的佣金配置
func (r *CommissionSettingRepository) GetByTenantID(ctx context.Context, tenantID string) (*models.CommissionSetting, error) {
	var setting models.CommissionSetting
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// Upsert 写入租户的佣金配置，已存在时整体覆盖
func (r *CommissionSettingRepository) Upsert(ctx context.Context, setting *models.CommissionSetting) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"depth", "type", "levels", "updated_by", "updated_at"}),
		}).
		Create(setting).Error
}
