package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type scopeItem struct {
	ID        int64
	Owner     int64
	Code      string
	CreatedAt time.Time
}

func seedScopeItems(t *testing.T) *gorm.DB {
	t.Helper()
	db := openMemoryDB(t)
	require.NoError(t, db.AutoMigrate(&scopeItem{}))

	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 25; i++ {
		require.NoError(t, db.Create(&scopeItem{
			ID:        int64(i),
			Owner:     int64(i%2 + 1),
			Code:      fmt.Sprintf("SUB%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	return db
}

func TestWindow(t *testing.T) {
	db := seedScopeItems(t)

	tests := []struct {
		name          string
		offset, limit int
		wantLen       int
		wantFirstID   int64
	}{
		{"第一页", 0, 10, 10, 25},
		{"最后一页", 20, 10, 5, 5},
		{"负偏移从头开始", -5, 10, 10, 25},
		{"非法页大小使用默认值", 0, 0, DefaultLimit, 25},
		{"超过上限截断", 0, 1000, 25, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []scopeItem
			require.NoError(t, db.Scopes(NewestFirst, Window(tt.offset, tt.limit)).Find(&items).Error)
			require.Len(t, items, tt.wantLen)
			assert.Equal(t, tt.wantFirstID, items[0].ID)
		})
	}
}

func TestEqAndContains(t *testing.T) {
	db := seedScopeItems(t)

	var count int64
	require.NoError(t, db.Model(&scopeItem{}).Scopes(Eq("owner", int64(1))).Count(&count).Error)
	assert.Equal(t, int64(12), count)

	require.NoError(t, db.Model(&scopeItem{}).Scopes(Eq("owner", int64(0))).Count(&count).Error)
	assert.Equal(t, int64(25), count, "零值不过滤")

	require.NoError(t, db.Model(&scopeItem{}).Scopes(Contains("code", "")).Count(&count).Error)
	assert.Equal(t, int64(25), count)

	require.NoError(t, db.Model(&scopeItem{}).Scopes(Contains("code", "SUB1")).Count(&count).Error)
	assert.Equal(t, int64(11), count) // SUB1, SUB10..SUB19
}

func TestCreatedBetween(t *testing.T) {
	db := seedScopeItems(t)
	now := time.Now()

	var count int64
	require.NoError(t, db.Model(&scopeItem{}).Scopes(CreatedBetween(map[string]interface{}{
		"start_date": now.Add(-50 * time.Minute),
	})).Count(&count).Error)
	assert.Equal(t, int64(15), count)

	require.NoError(t, db.Model(&scopeItem{}).Scopes(CreatedBetween(map[string]interface{}{
		"start_date": now.Add(-50 * time.Minute),
		"end_date":   now.Add(-40 * time.Minute),
	})).Count(&count).Error)
	assert.Equal(t, int64(10), count)

	require.NoError(t, db.Model(&scopeItem{}).Scopes(CreatedBetween(nil)).Count(&count).Error)
	assert.Equal(t, int64(25), count)
}

func TestFindPage(t *testing.T) {
	db := seedScopeItems(t)

	var items []scopeItem
	total, err := FindPage(db.Model(&scopeItem{}).Scopes(Eq("owner", int64(2))), 0, 5, &items)
	require.NoError(t, err)
	assert.Equal(t, int64(13), total)
	require.Len(t, items, 5)
	assert.Equal(t, int64(25), items[0].ID)

	var none []scopeItem
	total, err = FindPage(db.Model(&scopeItem{}).Scopes(Eq("owner", int64(9))), 0, 5, &none)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
