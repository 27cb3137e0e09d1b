package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CommissionType 佣金计算方式
const (
	CommissionTypePercent = "percent" // 按销售额百分比
	CommissionTypeFixed   = "fixed"   // 固定金额
)

// CommissionSetting 佣金配置，每个租户一条
type CommissionSetting struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID  string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"tenant_id"`
	Depth     int         `gorm:"not null;default:5" json:"depth"`
	Type      string      `gorm:"type:varchar(10);not null;default:percent" json:"type"`
	Levels    LevelValues `gorm:"type:text;not null" json:"levels"`
	UpdatedBy *int64      `json:"updated_by,omitempty"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (CommissionSetting) TableName() string {
	return "commission_settings"
}

// ErrLevelValuesCorrupt 层级配置无法解析
var ErrLevelValuesCorrupt = errors.New("levels: corrupt value")

// LevelValues 层级 -> 配置值，以 JSON 对象存储，例如 {"1":"15","2":"10"}
type LevelValues map[int]decimal.Decimal

// Value 实现 driver.Valuer
func (l LevelValues) Value() (driver.Value, error) {
	if l == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[int]decimal.Decimal(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (l *LevelValues) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = LevelValues{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrLevelValuesCorrupt, value)
	}

	if len(raw) == 0 {
		*l = LevelValues{}
		return nil
	}

	m := make(map[int]decimal.Decimal)
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrLevelValuesCorrupt, err)
	}
	*l = m
	return nil
}

// Get 返回层级配置值，未配置返回零
func (l LevelValues) Get(level int) decimal.Decimal {
	if v, ok := l[level]; ok {
		return v
	}
	return decimal.Zero
}

// Prune 返回只保留 1..depth 层级的副本
func (l LevelValues) Prune(depth int) LevelValues {
	out := make(LevelValues, len(l))
	for level, v := range l {
		if level >= 1 && level <= depth {
			out[level] = v
		}
	}
	return out
}

// Sum 配置值合计
func (l LevelValues) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range l {
		total = total.Add(v)
	}
	return total
}

// SortedLevels 按层级升序返回已配置的层级
func (l LevelValues) SortedLevels() []int {
	levels := make([]int, 0, len(l))
	for level := range l {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}
