package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/database"
	"github.com/dumeirei/affiliate-backend/internal/models"
)

// OperationLogRepository 管理端审计日志仓储
type OperationLogRepository struct {
	db *gorm.DB
}

// NewOperationLogRepository 创建审计日志仓储
func NewOperationLogRepository(db *gorm.DB) *OperationLogRepository {
	return &OperationLogRepository{db: db}
}

// Create 写入一条审计日志
func (r *OperationLogRepository) Create(ctx context.Context, log *models.OperationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// List 审计日志列表
// filters 支持 admin_id、module、action、target_type、target_id 与创建日期区间
func (r *OperationLogRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.OperationLog, int64, error) {
	adminID, _ := filters["admin_id"].(int64)
	module, _ := filters["module"].(string)
	action, _ := filters["action"].(string)
	targetType, _ := filters["target_type"].(string)
	targetID, _ := filters["target_id"].(int64)

	query := r.db.WithContext(ctx).Model(&models.OperationLog{}).Scopes(
		database.Eq("admin_id", adminID),
		database.Eq("module", module),
		database.Eq("action", action),
		database.Eq("target_type", targetType),
		database.Eq("target_id", targetID),
		database.CreatedBetween(filters),
	)

	var logs []*models.OperationLog
	total, err := database.FindPage(query, offset, limit, &logs)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// DeleteBefore 删除 before 之前的日志，返回删除条数
func (r *OperationLogRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.OperationLog{})
	return result.RowsAffected, result.Error
}
