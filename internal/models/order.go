package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 订阅订单模型
// PaymentRef 为支付网关流水号，唯一，用于支付通知幂等
// 部分唯一索引保证每个推广员最多一个 active 订单
type Order struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo         string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	AffiliateID     int64           `gorm:"index;uniqueIndex:idx_orders_one_active,where:status = 'active';not null" json:"affiliate_id"`
	PlanName        string          `gorm:"type:varchar(100);not null" json:"plan_name"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null;default:BRL" json:"currency"`
	Status          string          `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	PaymentRef      *string         `gorm:"type:varchar(64);uniqueIndex" json:"payment_ref,omitempty"`
	CheckoutURL     *string         `gorm:"type:varchar(512)" json:"checkout_url,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	NextBillingDate *time.Time      `json:"next_billing_date,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
}

// TableName 表名
func (Order) TableName() string {
	return "orders"
}

// OrderStatus 订单状态
const (
	OrderStatusPending   = "pending"   // 待支付
	OrderStatusActive    = "active"    // 已支付，订阅生效
	OrderStatusCancelled = "cancelled" // 已取消
	OrderStatusSuspended = "suspended" // 已暂停
)

// orderTransitions 管理员可执行的状态流转，pending -> active 只能由支付通知触发
var orderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusCancelled},
	OrderStatusActive:    {OrderStatusCancelled, OrderStatusSuspended},
	OrderStatusSuspended: {OrderStatusActive, OrderStatusCancelled},
}

// CanTransitTo 判断管理员能否将订单从当前状态改为目标状态
func (o *Order) CanTransitTo(status string) bool {
	for _, next := range orderTransitions[o.Status] {
		if next == status {
			return true
		}
	}
	return false
}

// IsValidOrderStatus 是否为合法的订单状态
func IsValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusActive, OrderStatusCancelled, OrderStatusSuspended:
		return true
	}
	return false
}
