// Package withdrawal 提现服务
package withdrawal

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/crypto"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/common/tracing"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
	"github.com/dumeirei/affiliate-backend/internal/service/affiliate"
	"github.com/dumeirei/affiliate-backend/internal/service/ledger"
)

// Service 提现服务
type Service struct {
	db             *gorm.DB
	affiliateRepo  *repository.AffiliateRepository
	withdrawalRepo *repository.WithdrawalRepository
	ledger         *ledger.Service
	cipher         *crypto.AES
	minAmount      decimal.Decimal
}

// NewService 创建提现服务
func NewService(
	db *gorm.DB,
	affiliateRepo *repository.AffiliateRepository,
	withdrawalRepo *repository.WithdrawalRepository,
	ledgerService *ledger.Service,
	cipher *crypto.AES,
) *Service {
	return &Service{
		db:             db,
		affiliateRepo:  affiliateRepo,
		withdrawalRepo: withdrawalRepo,
		ledger:         ledgerService,
		cipher:         cipher,
		minAmount:      decimal.Zero,
	}
}

// SetMinAmount 设置最低提现金额，0 表示不限制
func (s *Service) SetMinAmount(min decimal.Decimal) {
	if min.IsNegative() {
		min = decimal.Zero
	}
	s.minAmount = min
}

// Request 申请提现
// 余额校验、记录写入与账本版本推进在同一事务内完成，版本冲突时整体回滚
func (s *Service) Request(ctx context.Context, affiliateID int64, amount decimal.Decimal) (*models.Withdrawal, error) {
	ctx, span := tracing.Start(ctx, "withdrawal.request",
		tracing.WithAffiliateID(affiliateID),
		tracing.WithOperation("request"),
	)
	withdrawal, err := s.request(ctx, affiliateID, amount)
	if withdrawal != nil {
		span.SetAttributes(tracing.WithWithdrawalID(withdrawal.ID))
	}
	tracing.End(span, err)
	return withdrawal, err
}

func (s *Service) request(ctx context.Context, affiliateID int64, amount decimal.Decimal) (*models.Withdrawal, error) {
	if err := s.validateAmount(amount); err != nil {
		return nil, err
	}

	var withdrawal *models.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		aff, err := s.affiliateRepo.WithTx(tx).GetByID(ctx, affiliateID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrAffiliateNotFound
			}
			return errors.ErrDatabaseError.WithError(err)
		}
		if !aff.HasPayoutKey() || aff.PayoutKeyType == nil {
			return errors.ErrPayoutKeyMissing
		}

		available, err := s.ledger.AvailableBalance(ctx, tx, affiliateID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(available) {
			return errors.ErrBalanceInsufficient.WithMessagef("可提现余额不足，当前可提现: %s", available.StringFixed(2))
		}

		masked, err := s.maskedPayoutKey(*aff.PayoutKeyType, *aff.PayoutKeyEncrypted)
		if err != nil {
			return err
		}

		withdrawal = &models.Withdrawal{
			WithdrawalNo:       utils.GenerateOrderNo("WD"),
			AffiliateID:        affiliateID,
			Amount:             amount,
			PayoutKeyType:      *aff.PayoutKeyType,
			PayoutKeyEncrypted: *aff.PayoutKeyEncrypted,
			PayoutKeyMasked:    masked,
			Status:             models.WithdrawalStatusPending,
		}
		if err := s.withdrawalRepo.WithTx(tx).Create(ctx, withdrawal); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}

		ok, err := s.affiliateRepo.WithTx(tx).BumpLedgerVersion(ctx, affiliateID, aff.LedgerVersion)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return errors.ErrLedgerConflict
		}
		return nil
	})
	if err != nil {
		if errors.IsKind(err, errors.KindPersistence) || errors.IsKind(err, errors.KindConfiguration) {
			logger.Error("提现申请失败",
				logger.Module("withdrawal"),
				logger.AffiliateID(affiliateID),
				logger.Amount(amount),
				logger.Err(err),
			)
		}
		return nil, err
	}

	metrics.RecordWithdrawalGlobal(models.WithdrawalStatusPending)
	logger.Info("提现申请已提交",
		logger.Module("withdrawal"),
		logger.AffiliateID(affiliateID),
		logger.WithdrawalID(withdrawal.ID),
		logger.Amount(amount),
	)
	return withdrawal, nil
}

func (s *Service) validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return errors.ErrWithdrawAmount.WithMessage("提现金额必须大于 0")
	}
	if !amount.Equal(amount.Truncate(2)) {
		return errors.ErrWithdrawAmount.WithMessage("提现金额最多两位小数")
	}
	if s.minAmount.Sign() > 0 && amount.LessThan(s.minAmount) {
		return errors.ErrWithdrawAmount.WithMessagef("最低提现金额为 %s", s.minAmount.StringFixed(2))
	}
	return nil
}

func (s *Service) maskedPayoutKey(keyType, encrypted string) (string, error) {
	if s.cipher == nil {
		return "", errors.ErrConfiguration.WithMessage("收款账户加密密钥未配置")
	}
	plain, err := s.cipher.Decrypt(encrypted)
	if err != nil {
		return "", errors.ErrConfiguration.WithError(err)
	}
	return affiliate.MaskPayoutKey(keyType, plain), nil
}

// Resolve 处理提现申请，outcome 为 paid 或 rejected
// 仅 pending 状态可处理，重复处理返回 ErrWithdrawalResolved
func (s *Service) Resolve(ctx context.Context, operatorID, withdrawalID int64, outcome, reason string) (*models.Withdrawal, error) {
	ctx, span := tracing.Start(ctx, "withdrawal.resolve",
		tracing.WithWithdrawalID(withdrawalID),
		tracing.WithUserID(operatorID),
		tracing.WithOperation(outcome),
	)
	withdrawal, err := s.resolve(ctx, operatorID, withdrawalID, outcome, reason)
	tracing.End(span, err)
	return withdrawal, err
}

func (s *Service) resolve(ctx context.Context, operatorID, withdrawalID int64, outcome, reason string) (*models.Withdrawal, error) {
	if outcome != models.WithdrawalStatusPaid && outcome != models.WithdrawalStatusRejected {
		return nil, errors.ErrWithdrawalOutcome
	}

	var rejectReason *string
	if outcome == models.WithdrawalStatusRejected && reason != "" {
		rejectReason = &reason
	}

	rows, err := s.withdrawalRepo.Resolve(ctx, withdrawalID, outcome, operatorID, rejectReason)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if rows == 0 {
		if _, err := s.withdrawalRepo.GetByID(ctx, withdrawalID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, errors.ErrWithdrawalNotFound
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		return nil, errors.ErrWithdrawalResolved
	}

	metrics.RecordWithdrawalGlobal(outcome)
	logger.Info("提现申请已处理",
		logger.Module("withdrawal"),
		logger.WithdrawalID(withdrawalID),
		logger.AdminID(operatorID),
		logger.String("outcome", outcome),
	)

	return s.GetByID(ctx, withdrawalID)
}

// GetByID 获取提现详情
func (s *Service) GetByID(ctx context.Context, id int64) (*models.Withdrawal, error) {
	withdrawal, err := s.withdrawalRepo.GetByIDWithAffiliate(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrWithdrawalNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return withdrawal, nil
}

// ListByAffiliate 获取推广员的提现记录
func (s *Service) ListByAffiliate(ctx context.Context, affiliateID int64, offset, limit int, status string) ([]*models.Withdrawal, int64, error) {
	list, total, err := s.withdrawalRepo.ListByAffiliateID(ctx, affiliateID, offset, limit, status)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

// List 管理端提现列表
func (s *Service) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Withdrawal, int64, error) {
	list, total, err := s.withdrawalRepo.List(ctx, offset, limit, filters)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}
