// Package ledger 推广员余额账本，余额始终由佣金与提现记录实时计算
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// Summary 余额汇总
type Summary struct {
	TotalCommission   decimal.Decimal `json:"total_commission"`
	PendingCommission decimal.Decimal `json:"pending_commission"`
	PaidCommission    decimal.Decimal `json:"paid_commission"`
	PendingWithdrawal decimal.Decimal `json:"pending_withdrawal"`
	PaidWithdrawal    decimal.Decimal `json:"paid_withdrawal"`
	Available         decimal.Decimal `json:"available"`
}

// Service 余额服务
type Service struct {
	commissionRepo *repository.CommissionRepository
	withdrawalRepo *repository.WithdrawalRepository
}

// NewService 创建余额服务
func NewService(commissionRepo *repository.CommissionRepository, withdrawalRepo *repository.WithdrawalRepository) *Service {
	return &Service{
		commissionRepo: commissionRepo,
		withdrawalRepo: withdrawalRepo,
	}
}

// AvailableBalance 可提现余额 = 佣金合计 - 待处理及已打款的提现合计
// tx 不为空时在该事务内计算
func (s *Service) AvailableBalance(ctx context.Context, tx *gorm.DB, affiliateID int64) (decimal.Decimal, error) {
	commissionRepo, withdrawalRepo := s.commissionRepo, s.withdrawalRepo
	if tx != nil {
		commissionRepo = commissionRepo.WithTx(tx)
		withdrawalRepo = withdrawalRepo.WithTx(tx)
	}

	credited, err := commissionRepo.SumByAffiliateID(ctx, affiliateID, "")
	if err != nil {
		return decimal.Zero, errors.ErrDatabaseError.WithError(err)
	}
	held, err := withdrawalRepo.SumHeldByAffiliateID(ctx, affiliateID)
	if err != nil {
		return decimal.Zero, errors.ErrDatabaseError.WithError(err)
	}

	available := credited.Sub(held)
	if available.IsNegative() {
		logger.Error("账户余额为负",
			logger.Module("ledger"),
			logger.AffiliateID(affiliateID),
			logger.String("credited", credited.StringFixed(2)),
			logger.String("held", held.StringFixed(2)),
		)
		return decimal.Zero, errors.ErrLedgerInconsistent
	}
	return available, nil
}

// GetSummary 获取余额汇总
func (s *Service) GetSummary(ctx context.Context, affiliateID int64) (*Summary, error) {
	total, err := s.commissionRepo.SumByAffiliateID(ctx, affiliateID, "")
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	pending, err := s.commissionRepo.SumByAffiliateID(ctx, affiliateID, models.CommissionStatusPending)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	paid, err := s.commissionRepo.SumByAffiliateID(ctx, affiliateID, models.CommissionStatusPaid)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	pendingWithdrawal, err := s.withdrawalRepo.SumByAffiliateAndStatus(ctx, affiliateID, models.WithdrawalStatusPending)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	paidWithdrawal, err := s.withdrawalRepo.SumByAffiliateAndStatus(ctx, affiliateID, models.WithdrawalStatusPaid)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	available := total.Sub(pendingWithdrawal).Sub(paidWithdrawal)
	if available.IsNegative() {
		logger.Error("账户余额为负",
			logger.Module("ledger"),
			logger.AffiliateID(affiliateID),
		)
		return nil, errors.ErrLedgerInconsistent
	}

	return &Summary{
		TotalCommission:   total,
		PendingCommission: pending,
		PaidCommission:    paid,
		PendingWithdrawal: pendingWithdrawal,
		PaidWithdrawal:    paidWithdrawal,
		Available:         available,
	}, nil
}
