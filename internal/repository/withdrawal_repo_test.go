// Package repository 提现仓储单元测试
package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

func setupWithdrawalTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Affiliate{}, &models.Withdrawal{})
	require.NoError(t, err)

	return db
}

var withdrawalSeq int

func newTestWithdrawal(affiliateID int64, amount, status string) *models.Withdrawal {
	withdrawalSeq++
	return &models.Withdrawal{
		WithdrawalNo:       fmt.Sprintf("W%06d", withdrawalSeq),
		AffiliateID:        affiliateID,
		Amount:             decimal.RequireFromString(amount),
		PayoutKeyType:      models.PayoutKeyTypeEmail,
		PayoutKeyEncrypted: "cipher",
		PayoutKeyMasked:    "a***@b.com",
		Status:             status,
	}
}

func TestWithdrawalRepository_CreateAndGet(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Affiliate{UserID: 1, FullName: "Ana", ReferralCode: "ANA"}).Error)

	w := newTestWithdrawal(1, "30.00", models.WithdrawalStatusPending)
	require.NoError(t, repo.Create(ctx, w))
	assert.NotZero(t, w.ID)

	found, err := repo.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", found.Amount.StringFixed(2))

	withAffiliate, err := repo.GetByIDWithAffiliate(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, withAffiliate.Affiliate)
	assert.Equal(t, "Ana", withAffiliate.Affiliate.FullName)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestWithdrawalRepository_SumHeldByAffiliateID(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	for _, w := range []*models.Withdrawal{
		newTestWithdrawal(1, "10.10", models.WithdrawalStatusPending),
		newTestWithdrawal(1, "20.20", models.WithdrawalStatusPaid),
		newTestWithdrawal(1, "99.00", models.WithdrawalStatusRejected),
		newTestWithdrawal(2, "5.00", models.WithdrawalStatusPending),
	} {
		require.NoError(t, repo.Create(ctx, w))
	}

	held, err := repo.SumHeldByAffiliateID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "30.30", held.StringFixed(2))

	paid, err := repo.SumByAffiliateAndStatus(ctx, 1, models.WithdrawalStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, "20.20", paid.StringFixed(2))

	none, err := repo.SumHeldByAffiliateID(ctx, 3)
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

func TestWithdrawalRepository_Resolve(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	w := newTestWithdrawal(1, "30.00", models.WithdrawalStatusPending)
	require.NoError(t, repo.Create(ctx, w))

	reason := "chave inválida"
	rows, err := repo.Resolve(ctx, w.ID, models.WithdrawalStatusRejected, 9, &reason)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	found, err := repo.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, found.Status)
	require.NotNil(t, found.RejectReason)
	assert.Equal(t, reason, *found.RejectReason)
	require.NotNil(t, found.OperatorID)
	assert.Equal(t, int64(9), *found.OperatorID)
	assert.NotNil(t, found.ResolvedAt)

	t.Run("已处理的提现不会被再次更新", func(t *testing.T) {
		rows, err := repo.Resolve(ctx, w.ID, models.WithdrawalStatusPaid, 9, nil)
		require.NoError(t, err)
		assert.Zero(t, rows)

		found, err := repo.GetByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusRejected, found.Status)
	})
}

func TestWithdrawalRepository_List(t *testing.T) {
	db := setupWithdrawalTestDB(t)
	repo := NewWithdrawalRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newTestWithdrawal(1, "1.00", models.WithdrawalStatusPending)))
	}
	require.NoError(t, repo.Create(ctx, newTestWithdrawal(2, "1.00", models.WithdrawalStatusPaid)))

	list, total, err := repo.List(ctx, 0, 10, map[string]interface{}{"status": models.WithdrawalStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 3)

	_, total, err = repo.List(ctx, 0, 10, map[string]interface{}{"affiliate_id": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.List(ctx, 0, 10, map[string]interface{}{"start_date": time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Zero(t, total)

	mine, total, err := repo.ListByAffiliateID(ctx, 1, 0, 2, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, mine, 2)

	count, err := repo.CountByStatus(ctx, models.WithdrawalStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	sum, err := repo.SumByStatusBetween(ctx, models.WithdrawalStatusPaid, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "1.00", sum.StringFixed(2))

	exists, err := repo.ExistsByAffiliateID(ctx, 2)
	require.NoError(t, err)
	assert.True(t, exists)
}
