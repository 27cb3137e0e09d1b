package affiliate

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
)

// List 管理端推广员列表
func (s *Service) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Affiliate, int64, error) {
	list, total, err := s.affiliateRepo.List(ctx, offset, limit, filters)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

// SetActive 启用或停用推广员
// 停用的推广员仍保留在推荐链中，只是不再获得佣金
func (s *Service) SetActive(ctx context.Context, operatorID, id int64, active bool) (*models.Affiliate, error) {
	rows, err := s.affiliateRepo.SetActive(ctx, id, active)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if rows == 0 {
		// 状态未变化时也可能为 0，需再确认是否存在
		if _, err := s.GetByID(ctx, id); err != nil {
			return nil, err
		}
	}

	logger.Info("推广员状态已更新",
		logger.Module("affiliate"),
		logger.AdminID(operatorID),
		logger.AffiliateID(id),
		logger.Bool("active", active),
	)
	return s.GetByID(ctx, id)
}

// ChangeReferralCode 修改推荐码
func (s *Service) ChangeReferralCode(ctx context.Context, operatorID, id int64, code string) (*models.Affiliate, error) {
	code = normalizeCode(code)
	if !utils.ValidateReferralCode(code) {
		return nil, errors.ErrReferralCodeInvalid.WithMessage("推荐码只能包含 4-32 位大写字母和数字")
	}

	aff, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if aff.ReferralCode == code {
		return aff, nil
	}

	exists, err := s.affiliateRepo.ExistsByReferralCode(ctx, code)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return nil, errors.ErrReferralCodeTaken
	}

	if err := s.affiliateRepo.UpdateReferralCode(ctx, id, code); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.ErrReferralCodeTaken
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("推荐码已修改",
		logger.Module("affiliate"),
		logger.AdminID(operatorID),
		logger.AffiliateID(id),
		logger.String("old_code", aff.ReferralCode),
		logger.String("new_code", code),
	)
	aff.ReferralCode = code
	return aff, nil
}

// Delete 删除推广员，存在下级、订单、佣金或提现记录时拒绝删除
func (s *Service) Delete(ctx context.Context, operatorID, id int64) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	children, err := s.affiliateRepo.CountChildren(ctx, id)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if children > 0 {
		return errors.ErrAffiliateHasLinks
	}

	checks := []func(context.Context, int64) (bool, error){
		s.orderRepo.ExistsByAffiliateID,
		s.commissionRepo.ExistsByAffiliateID,
		s.withdrawalRepo.ExistsByAffiliateID,
	}
	for _, check := range checks {
		linked, err := check(ctx, id)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if linked {
			return errors.ErrAffiliateHasLinks
		}
	}

	if err := s.affiliateRepo.Delete(ctx, id); err != nil {
		// 检查之后新增的下级或订单由外键拦截
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return errors.ErrAffiliateHasLinks
		}
		return errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("推广员已删除",
		logger.Module("affiliate"),
		logger.AdminID(operatorID),
		logger.AffiliateID(id),
	)
	return nil
}
