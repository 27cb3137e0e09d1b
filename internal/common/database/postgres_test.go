// Package database 数据库模块单元测试
package database

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/models"
)

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return testDB
}

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, getLogLevel(true))
	assert.Equal(t, logger.Warn, getLogLevel(false))
}

func TestNewGormLogger_WritesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	gl := newGormLogger(&config.DatabaseConfig{LogMode: false, SlowThreshold: 200}, zap.New(core))

	gl.Info(context.Background(), "silenced %s", "info")
	gl.Warn(context.Background(), "slow %s", "query")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "gorm", logs.All()[0].LoggerName)
	assert.Contains(t, logs.All()[0].Message, "slow query")
}

func TestMigrate(t *testing.T) {
	testDB := openMemoryDB(t)
	require.NoError(t, Migrate(testDB))

	for _, m := range Models() {
		assert.True(t, testDB.Migrator().HasTable(m), "%T", m)
	}

	t.Run("支付流水号唯一", func(t *testing.T) {
		ref := "pay-1"
		first := &models.Order{OrderNo: "SUB1", AffiliateID: 1, PlanName: "p", Amount: decimal.NewFromInt(10), Status: models.OrderStatusActive, PaymentRef: &ref}
		second := &models.Order{OrderNo: "SUB2", AffiliateID: 1, PlanName: "p", Amount: decimal.NewFromInt(10), Status: models.OrderStatusActive, PaymentRef: &ref}
		require.NoError(t, testDB.Create(first).Error)
		assert.Error(t, testDB.Create(second).Error)
	})

	t.Run("未支付订单流水号可为空", func(t *testing.T) {
		a := &models.Order{OrderNo: "SUB3", AffiliateID: 2, PlanName: "p", Amount: decimal.NewFromInt(10), Status: models.OrderStatusPending}
		b := &models.Order{OrderNo: "SUB4", AffiliateID: 3, PlanName: "p", Amount: decimal.NewFromInt(10), Status: models.OrderStatusPending}
		require.NoError(t, testDB.Create(a).Error)
		require.NoError(t, testDB.Create(b).Error)
	})

	t.Run("同一订单同一层级只有一条佣金", func(t *testing.T) {
		orderID := int64(99)
		c := func() *models.Commission {
			return &models.Commission{
				AffiliateID: 1, OrderID: &orderID, BuyerAffiliateID: 2, Level: 1,
				SaleAmount: decimal.NewFromInt(100), ValueType: models.CommissionTypePercent,
				Value: decimal.NewFromInt(10), Amount: decimal.NewFromInt(10),
				Status: models.CommissionStatusPending,
			}
		}
		require.NoError(t, testDB.Create(c()).Error)
		assert.Error(t, testDB.Create(c()).Error)
	})
}

func TestClose(t *testing.T) {
	assert.NoError(t, Close(nil))

	testDB := openMemoryDB(t)
	require.NoError(t, Close(testDB))
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}
