// Package affiliate 推广员服务
package affiliate

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/crypto"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/qrcode"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
	"github.com/dumeirei/affiliate-backend/internal/service/ledger"
	"github.com/dumeirei/affiliate-backend/internal/service/network"
)

// 推荐码生成参数
const (
	referralCodeLength  = 8
	referralCodeRetries = 10
)

// Service 推广员服务
type Service struct {
	affiliateRepo  *repository.AffiliateRepository
	commissionRepo *repository.CommissionRepository
	orderRepo      *repository.OrderRepository
	withdrawalRepo *repository.WithdrawalRepository
	ledger         *ledger.Service
	network        *network.Service
	cipher         *crypto.AES
	qr             *qrcode.Generator
	siteURL        string
}

// NewService 创建推广员服务
func NewService(
	affiliateRepo *repository.AffiliateRepository,
	commissionRepo *repository.CommissionRepository,
	orderRepo *repository.OrderRepository,
	withdrawalRepo *repository.WithdrawalRepository,
	ledgerService *ledger.Service,
	networkService *network.Service,
	cipher *crypto.AES,
	siteURL string,
) *Service {
	return &Service{
		affiliateRepo:  affiliateRepo,
		commissionRepo: commissionRepo,
		orderRepo:      orderRepo,
		withdrawalRepo: withdrawalRepo,
		ledger:         ledgerService,
		network:        networkService,
		cipher:         cipher,
		qr:             qrcode.NewGenerator(320),
		siteURL:        strings.TrimRight(siteURL, "/"),
	}
}

// RegisterRequest 注册推广员请求
type RegisterRequest struct {
	UserID       int64  `json:"-"`
	FullName     string `json:"full_name" binding:"required,max=100"`
	Email        string `json:"email" binding:"omitempty,email"`
	ReferralCode string `json:"referral_code"` // 上级推荐码
}

// Profile 推广员资料
type Profile struct {
	Affiliate       *models.Affiliate `json:"affiliate"`
	PayoutKeyMasked string            `json:"payout_key_masked,omitempty"`
	ReferralLink    string            `json:"referral_link"`
}

// InviteInfo 推广链接信息
type InviteInfo struct {
	ReferralCode string `json:"referral_code"`
	ReferralLink string `json:"referral_link"`
	QRCode       string `json:"qrcode"` // data:image/png;base64
}

// Register 注册成为推广员，上级在注册时确定且之后不可修改
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*models.Affiliate, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, errors.ErrInvalidParams.WithMessage("姓名不能为空")
	}

	exists, err := s.affiliateRepo.ExistsByUserID(ctx, req.UserID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return nil, errors.ErrAffiliateExists
	}

	var sponsorID *int64
	if code := normalizeCode(req.ReferralCode); code != "" {
		sponsor, err := s.affiliateRepo.GetByReferralCode(ctx, code)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, errors.ErrReferralCodeInvalid
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		sponsorID = &sponsor.ID
	}

	code, err := s.generateReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	aff := &models.Affiliate{
		UserID:       req.UserID,
		FullName:     fullName,
		ReferralCode: code,
		SponsorID:    sponsorID,
		IsActive:     true,
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		aff.Email = &email
	}

	if err := s.affiliateRepo.Create(ctx, aff); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.ErrAffiliateExists
		}
		// 上级在注册过程中被删除
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, errors.ErrReferralCodeInvalid
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("推广员注册成功",
		logger.Module("affiliate"),
		logger.AffiliateID(aff.ID),
		logger.UserID(req.UserID),
		logger.String("referral_code", code),
	)
	return aff, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// generateReferralCode 生成唯一推荐码
func (s *Service) generateReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < referralCodeRetries; i++ {
		code := utils.GenerateReferralCode(referralCodeLength)
		exists, err := s.affiliateRepo.ExistsByReferralCode(ctx, code)
		if err != nil {
			return "", errors.ErrDatabaseError.WithError(err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.ErrOperationFailed.WithMessage("生成推荐码失败，请重试")
}

// GetByUserID 根据用户 ID 获取推广员
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*models.Affiliate, error) {
	aff, err := s.affiliateRepo.GetByUserID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrAffiliateNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return aff, nil
}

// GetByID 根据 ID 获取推广员
func (s *Service) GetByID(ctx context.Context, id int64) (*models.Affiliate, error) {
	aff, err := s.affiliateRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrAffiliateNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return aff, nil
}

// GetProfile 获取推广员资料
func (s *Service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	aff, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		Affiliate:    aff,
		ReferralLink: s.ReferralLink(aff.ReferralCode),
	}
	if aff.HasPayoutKey() && aff.PayoutKeyType != nil && s.cipher != nil {
		plain, err := s.cipher.Decrypt(*aff.PayoutKeyEncrypted)
		if err != nil {
			logger.Warn("收款账户解密失败",
				logger.Module("affiliate"),
				logger.AffiliateID(aff.ID),
				logger.Err(err),
			)
		} else {
			profile.PayoutKeyMasked = MaskPayoutKey(*aff.PayoutKeyType, plain)
		}
	}
	return profile, nil
}

// ReferralLink 推广链接
func (s *Service) ReferralLink(code string) string {
	return s.siteURL + "/?ref=" + code
}

// GetInviteInfo 获取推广链接和二维码
func (s *Service) GetInviteInfo(ctx context.Context, userID int64) (*InviteInfo, error) {
	aff, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	link := s.ReferralLink(aff.ReferralCode)
	qr, err := s.qr.DataURL(link)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	return &InviteInfo{
		ReferralCode: aff.ReferralCode,
		ReferralLink: link,
		QRCode:       qr,
	}, nil
}

// UpdatePayoutKey 设置收款账户，密文存储，返回脱敏后的账户
func (s *Service) UpdatePayoutKey(ctx context.Context, userID int64, keyType, key string) (string, error) {
	if s.cipher == nil {
		return "", errors.ErrConfiguration.WithMessage("收款账户加密密钥未配置")
	}

	normalized, err := NormalizePayoutKey(keyType, key)
	if err != nil {
		return "", err
	}

	aff, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}

	encrypted, err := s.cipher.Encrypt(normalized)
	if err != nil {
		return "", errors.ErrInternalError.WithError(err)
	}
	if err := s.affiliateRepo.UpdatePayoutKey(ctx, aff.ID, keyType, encrypted); err != nil {
		return "", errors.ErrDatabaseError.WithError(err)
	}

	masked := MaskPayoutKey(keyType, normalized)
	logger.Info("收款账户已更新",
		logger.Module("affiliate"),
		logger.AffiliateID(aff.ID),
		logger.String("key_type", keyType),
	)
	return masked, nil
}
