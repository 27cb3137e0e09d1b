package database

import (
	"time"

	"gorm.io/gorm"
)

// 列表查询的分页上限
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Scope GORM 查询作用域
type Scope = func(*gorm.DB) *gorm.DB

// Window 偏移分页，limit 非法时使用默认值并限制上限
func Window(offset, limit int) Scope {
	if offset < 0 {
		offset = 0
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(offset).Limit(limit)
	}
}

// NewestFirst 按主键降序，新记录在前
func NewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("id DESC")
}

// Eq 等值过滤，零值不加条件
func Eq[T comparable](column string, value T) Scope {
	return func(db *gorm.DB) *gorm.DB {
		var zero T
		if value == zero {
			return db
		}
		return db.Where(column+" = ?", value)
	}
}

// Contains 模糊匹配，空串不加条件
func Contains(column, value string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if value == "" {
			return db
		}
		return db.Where(column+" LIKE ?", "%"+value+"%")
	}
}

// CreatedBetween 读取 filters 中的 start_date（含）与 end_date（不含）
func CreatedBetween(filters map[string]interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if start, ok := filters["start_date"].(time.Time); ok {
			db = db.Where("created_at >= ?", start)
		}
		if end, ok := filters["end_date"].(time.Time); ok {
			db = db.Where("created_at < ?", end)
		}
		return db
	}
}

// FindPage 先计数再按窗口查询，query 须已设置 Model 与过滤条件
func FindPage[T any](query *gorm.DB, offset, limit int, out *[]T, scopes ...Scope) (int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	if total == 0 {
		*out = []T{}
		return 0, nil
	}
	scopes = append(scopes, NewestFirst, Window(offset, limit))
	if err := query.Scopes(scopes...).Find(out).Error; err != nil {
		return 0, err
	}
	return total, nil
}
