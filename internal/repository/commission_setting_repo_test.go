// Package repository 佣金配置仓储单元测试
package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

func setupCommissionSettingTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.CommissionSetting{})
	require.NoError(t, err)

	return db
}

func TestCommissionSettingRepository_Upsert(t *testing.T) {
	db := setupCommissionSettingTestDB(t)
	repo := NewCommissionSettingRepository(db)
	ctx := context.Background()

	_, err := repo.GetByTenantID(ctx, "default")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = repo.Upsert(ctx, &models.CommissionSetting{
		TenantID: "default",
		Depth:    3,
		Type:     models.CommissionTypePercent,
		Levels:   models.LevelValues{1: decimal.NewFromInt(15), 2: decimal.NewFromInt(10)},
	})
	require.NoError(t, err)

	operator := int64(7)
	err = repo.Upsert(ctx, &models.CommissionSetting{
		TenantID:  "default",
		Depth:     2,
		Type:      models.CommissionTypeFixed,
		Levels:    models.LevelValues{1: decimal.RequireFromString("20.50")},
		UpdatedBy: &operator,
	})
	require.NoError(t, err)

	var count int64
	db.Model(&models.CommissionSetting{}).Count(&count)
	assert.Equal(t, int64(1), count)

	setting, err := repo.GetByTenantID(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 2, setting.Depth)
	assert.Equal(t, models.CommissionTypeFixed, setting.Type)
	assert.Equal(t, []int{1}, setting.Levels.SortedLevels())
	assert.Equal(t, "20.50", setting.Levels.Get(1).StringFixed(2))
	require.NotNil(t, setting.UpdatedBy)
	assert.Equal(t, operator, *setting.UpdatedBy)
}

func TestCommissionSettingRepository_CorruptLevels(t *testing.T) {
	db := setupCommissionSettingTestDB(t)
	repo := NewCommissionSettingRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Exec(
		"INSERT INTO commission_settings (tenant_id, depth, type, levels) VALUES (?, ?, ?, ?)",
		"broken", 5, models.CommissionTypePercent, "not-json",
	).Error)

	_, err := repo.GetByTenantID(ctx, "broken")
	assert.Error(t, err)
	assert.ErrorIs(t, err, models.ErrLevelValuesCorrupt)
}
