package affiliate

import (
	"strings"

	"github.com/dumeirei/affiliate-backend/internal/common/crypto"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
)

// NormalizePayoutKey 校验并规范化收款账户（PIX 密钥）
func NormalizePayoutKey(keyType, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.ErrPayoutKeyInvalid.WithMessage("收款账户不能为空")
	}

	switch keyType {
	case models.PayoutKeyTypeCPF:
		digits := utils.OnlyDigits(key)
		if !utils.ValidateCPF(digits) {
			return "", errors.ErrPayoutKeyInvalid.WithMessage("CPF 格式错误")
		}
		return digits, nil
	case models.PayoutKeyTypeCNPJ:
		digits := utils.OnlyDigits(key)
		if !utils.ValidateCNPJ(digits) {
			return "", errors.ErrPayoutKeyInvalid.WithMessage("CNPJ 格式错误")
		}
		return digits, nil
	case models.PayoutKeyTypeEmail:
		email := strings.ToLower(key)
		if !utils.ValidateEmail(email) {
			return "", errors.ErrPayoutKeyInvalid.WithMessage("邮箱格式错误")
		}
		return email, nil
	case models.PayoutKeyTypePhone:
		phone := utils.OnlyDigits(key)
		if strings.HasPrefix(key, "+") {
			phone = "+" + phone
		}
		if !utils.ValidatePhone(phone) {
			return "", errors.ErrPayoutKeyInvalid.WithMessage("手机号格式错误")
		}
		return phone, nil
	case models.PayoutKeyTypeRandom:
		if !utils.ValidateUUID(key) {
			return "", errors.ErrPayoutKeyInvalid.WithMessage("随机密钥格式错误")
		}
		return strings.ToLower(key), nil
	}
	return "", errors.ErrPayoutKeyInvalid.WithMessage("不支持的收款账户类型")
}

// MaskPayoutKey 收款账户脱敏
func MaskPayoutKey(keyType, key string) string {
	switch keyType {
	case models.PayoutKeyTypeCPF, models.PayoutKeyTypeCNPJ:
		return crypto.MaskDocument(key)
	case models.PayoutKeyTypeEmail:
		return crypto.MaskEmail(key)
	case models.PayoutKeyTypePhone:
		return crypto.MaskPhone(key)
	default:
		return crypto.MaskRandom(key)
	}
}
