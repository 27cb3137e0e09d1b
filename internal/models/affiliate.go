package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Affiliate 推广员模型
// SponsorID 在创建时确定，之后不再修改
type Affiliate struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	FullName           string    `gorm:"type:varchar(100);not null" json:"full_name"`
	Email              *string   `gorm:"type:varchar(255)" json:"email,omitempty"`
	ReferralCode       string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"referral_code"`
	SponsorID          *int64    `gorm:"index" json:"sponsor_id,omitempty"`
	IsActive           bool      `gorm:"not null;default:true" json:"is_active"`
	PayoutKeyType      *string   `gorm:"type:varchar(20)" json:"payout_key_type,omitempty"`
	PayoutKeyEncrypted *string   `gorm:"type:varchar(512)" json:"-"`
	LedgerVersion      int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联，有下级的推广员不能删除
	Sponsor *Affiliate `gorm:"foreignKey:SponsorID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName 表名
func (Affiliate) TableName() string {
	return "affiliates"
}

// HasPayoutKey 是否已设置收款账户
func (a *Affiliate) HasPayoutKey() bool {
	return a.PayoutKeyEncrypted != nil && *a.PayoutKeyEncrypted != ""
}

// PayoutKeyType 收款账户类型
const (
	PayoutKeyTypeCPF    = "cpf"
	PayoutKeyTypeCNPJ   = "cnpj"
	PayoutKeyTypeEmail  = "email"
	PayoutKeyTypePhone  = "phone"
	PayoutKeyTypeRandom = "random"
)

// Commission 佣金记录
// 同一订单的同一层级最多一条
type Commission struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AffiliateID      int64           `gorm:"index;not null" json:"affiliate_id"`
	OrderID          *int64          `gorm:"uniqueIndex:idx_commission_order_level" json:"order_id,omitempty"`
	BuyerAffiliateID int64           `gorm:"index;not null" json:"buyer_affiliate_id"`
	Level            int             `gorm:"uniqueIndex:idx_commission_order_level;not null" json:"level"`
	SaleAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"sale_amount"`
	ValueType        string          `gorm:"type:varchar(10);not null" json:"value_type"`
	Value            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"value"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status           string          `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	SettledAt        *time.Time      `json:"settled_at,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`

	// 关联
	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
}

// TableName 表名
func (Commission) TableName() string {
	return "commissions"
}

// CommissionStatus 佣金状态
const (
	CommissionStatusPending = "pending" // 待结算
	CommissionStatusPaid    = "paid"    // 已结算
)

// Withdrawal 提现记录
type Withdrawal struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_no"`
	AffiliateID        int64           `gorm:"index;not null" json:"affiliate_id"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PayoutKeyType      string          `gorm:"type:varchar(20);not null" json:"payout_key_type"`
	PayoutKeyEncrypted string          `gorm:"type:varchar(512);not null" json:"-"`
	PayoutKeyMasked    string          `gorm:"type:varchar(64);not null" json:"payout_key_masked"`
	Status             string          `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	RejectReason       *string         `gorm:"type:varchar(255)" json:"reject_reason,omitempty"`
	OperatorID         *int64          `json:"operator_id,omitempty"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
}

// TableName 表名
func (Withdrawal) TableName() string {
	return "withdrawals"
}

// WithdrawalStatus 提现状态
const (
	WithdrawalStatusPending  = "pending"  // 待处理
	WithdrawalStatusPaid     = "paid"     // 已打款
	WithdrawalStatusRejected = "rejected" // 已拒绝
)

// WithdrawalHoldStatuses 占用可提现余额的提现状态
var WithdrawalHoldStatuses = []string{WithdrawalStatusPending, WithdrawalStatusPaid}
