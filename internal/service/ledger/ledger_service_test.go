package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/affiliate-backend/internal/common/database"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestService(db *gorm.DB) *Service {
	return NewService(repository.NewCommissionRepository(db), repository.NewWithdrawalRepository(db))
}

var seq int64

func addCommission(t *testing.T, db *gorm.DB, affiliateID int64, amount, status string) {
	t.Helper()
	seq++
	orderID := seq
	require.NoError(t, db.Create(&models.Commission{
		AffiliateID:      affiliateID,
		OrderID:          &orderID,
		BuyerAffiliateID: 999,
		Level:            1,
		SaleAmount:       decimal.NewFromInt(100),
		ValueType:        models.CommissionTypeFixed,
		Value:            decimal.RequireFromString(amount),
		Amount:           decimal.RequireFromString(amount),
		Status:           status,
	}).Error)
}

func addWithdrawal(t *testing.T, db *gorm.DB, affiliateID int64, amount, status string) {
	t.Helper()
	seq++
	require.NoError(t, db.Create(&models.Withdrawal{
		WithdrawalNo:       fmt.Sprintf("W%d", seq),
		AffiliateID:        affiliateID,
		Amount:             decimal.RequireFromString(amount),
		PayoutKeyType:      models.PayoutKeyTypeEmail,
		PayoutKeyEncrypted: "x",
		PayoutKeyMasked:    "x",
		Status:             status,
	}).Error)
}

func TestAvailableBalance(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	balance, err := svc.AvailableBalance(ctx, nil, 1)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	addCommission(t, db, 1, "43.48", models.CommissionStatusPending)
	addCommission(t, db, 1, "20.00", models.CommissionStatusPaid)
	addWithdrawal(t, db, 1, "10.10", models.WithdrawalStatusPending)
	addWithdrawal(t, db, 1, "3.00", models.WithdrawalStatusPaid)
	addWithdrawal(t, db, 1, "50.00", models.WithdrawalStatusRejected)
	addCommission(t, db, 2, "99.00", models.CommissionStatusPending)

	balance, err = svc.AvailableBalance(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, "50.38", balance.StringFixed(2))
}

func TestAvailableBalance_DecreasesByWithdrawal(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	addCommission(t, db, 1, "100.00", models.CommissionStatusPending)

	for _, status := range []string{models.WithdrawalStatusPending, models.WithdrawalStatusPaid} {
		before, err := svc.AvailableBalance(ctx, nil, 1)
		require.NoError(t, err)

		addWithdrawal(t, db, 1, "12.34", status)

		after, err := svc.AvailableBalance(ctx, nil, 1)
		require.NoError(t, err)
		assert.Equal(t, "12.34", before.Sub(after).StringFixed(2), status)
	}
}

func TestAvailableBalance_Negative(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newTestService(db)

	addCommission(t, db, 1, "5.00", models.CommissionStatusPending)
	addWithdrawal(t, db, 1, "6.00", models.WithdrawalStatusPaid)

	_, err := svc.AvailableBalance(context.Background(), nil, 1)
	assert.True(t, errors.Is(err, errors.ErrLedgerInconsistent))
	assert.True(t, errors.IsKind(err, errors.KindPersistence))

	_, err = svc.GetSummary(context.Background(), 1)
	assert.True(t, errors.Is(err, errors.ErrLedgerInconsistent))
}

func TestGetSummary(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc := newTestService(db)

	addCommission(t, db, 1, "15.00", models.CommissionStatusPending)
	addCommission(t, db, 1, "10.00", models.CommissionStatusPaid)
	addWithdrawal(t, db, 1, "4.00", models.WithdrawalStatusPending)
	addWithdrawal(t, db, 1, "6.00", models.WithdrawalStatusPaid)

	summary, err := svc.GetSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "25.00", summary.TotalCommission.StringFixed(2))
	assert.Equal(t, "15.00", summary.PendingCommission.StringFixed(2))
	assert.Equal(t, "10.00", summary.PaidCommission.StringFixed(2))
	assert.Equal(t, "4.00", summary.PendingWithdrawal.StringFixed(2))
	assert.Equal(t, "6.00", summary.PaidWithdrawal.StringFixed(2))
	assert.Equal(t, "15.00", summary.Available.StringFixed(2))
}
