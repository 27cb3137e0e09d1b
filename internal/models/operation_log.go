package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// 操作日志模块
const (
	LogModuleCommissionSetting = "commission_setting"
	LogModuleWithdrawal        = "withdrawal"
	LogModuleAffiliate         = "affiliate"
	LogModuleOrder             = "order"
)

// OperationLog 管理端写操作审计记录
type OperationLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminID    int64     `gorm:"index;not null" json:"admin_id"`
	AdminRole  string    `gorm:"type:varchar(30)" json:"admin_role,omitempty"`
	Module     string    `gorm:"type:varchar(50);not null;index" json:"module"`
	Action     string    `gorm:"type:varchar(50);not null" json:"action"`
	TargetType *string   `gorm:"type:varchar(50)" json:"target_type,omitempty"`
	TargetID   *int64    `json:"target_id,omitempty"`
	Payload    JSON      `gorm:"type:jsonb" json:"payload,omitempty"`
	StatusCode int       `gorm:"not null" json:"status_code"`
	IP         string    `gorm:"type:varchar(45);not null" json:"ip"`
	UserAgent  *string   `gorm:"type:varchar(255)" json:"user_agent,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 表名
func (OperationLog) TableName() string {
	return "operation_logs"
}

// JSON 自定义 JSON 类型
type JSON map[string]interface{}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return nil
	}
}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
