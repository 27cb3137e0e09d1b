package network

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/affiliate-backend/internal/common/database"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

func setupNetworkTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

var userSeq int64

func addAffiliate(t *testing.T, db *gorm.DB, name string, sponsor *models.Affiliate) *models.Affiliate {
	t.Helper()
	userSeq++
	aff := &models.Affiliate{
		UserID:       userSeq,
		FullName:     name,
		ReferralCode: strings.ToUpper(name),
	}
	if sponsor != nil {
		aff.SponsorID = &sponsor.ID
	}
	require.NoError(t, db.Create(aff).Error)
	return aff
}

func TestSubtree_NoDescendants(t *testing.T) {
	db := setupNetworkTestDB(t)
	svc := NewService(repository.NewAffiliateRepository(db), 0)

	solo := addAffiliate(t, db, "solo", nil)

	tree, err := svc.Subtree(context.Background(), solo.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Equal(t, solo.ID, tree.AffiliateID)
	assert.Equal(t, 0, tree.LevelFromRoot)
	assert.NotNil(t, tree.Children)
	assert.Empty(t, tree.Children)

	raw, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"children":[]`)
}

func TestSubtree_Levels(t *testing.T) {
	db := setupNetworkTestDB(t)
	svc := NewService(repository.NewAffiliateRepository(db), 2)
	ctx := context.Background()

	root := addAffiliate(t, db, "root", nil)
	a := addAffiliate(t, db, "alfa", root)
	b := addAffiliate(t, db, "bravo", root)
	a1 := addAffiliate(t, db, "alfa1", a)
	a11 := addAffiliate(t, db, "alfa11", a1)
	require.NoError(t, db.Model(b).Update("is_active", false).Error)

	t.Run("预览深度", func(t *testing.T) {
		tree, err := svc.Subtree(ctx, root.ID, 0)
		require.NoError(t, err)
		require.Len(t, tree.Children, 2)

		first := tree.Children[0]
		assert.Equal(t, a.ID, first.AffiliateID)
		assert.Equal(t, 1, first.LevelFromRoot)
		require.Len(t, first.Children, 1)
		assert.Equal(t, a1.ID, first.Children[0].AffiliateID)
		assert.Equal(t, 2, first.Children[0].LevelFromRoot)
		assert.Empty(t, first.Children[0].Children)

		second := tree.Children[1]
		assert.Equal(t, b.ID, second.AffiliateID)
		assert.False(t, second.Active)
		assert.NotNil(t, second.Children)
	})

	t.Run("更深层", func(t *testing.T) {
		tree, err := svc.Subtree(ctx, root.ID, 5)
		require.NoError(t, err)
		leaf := tree.Children[0].Children[0].Children[0]
		assert.Equal(t, a11.ID, leaf.AffiliateID)
		assert.Equal(t, 3, leaf.LevelFromRoot)
	})

	t.Run("从中间节点展开", func(t *testing.T) {
		tree, err := svc.Subtree(ctx, a.ID, 1)
		require.NoError(t, err)
		require.Len(t, tree.Children, 1)
		assert.Empty(t, tree.Children[0].Children)
	})
}

func TestSubtree_DepthCap(t *testing.T) {
	db := setupNetworkTestDB(t)
	svc := NewService(repository.NewAffiliateRepository(db), 0)

	root := addAffiliate(t, db, "n0", nil)
	prev := root
	for i := 1; i <= 15; i++ {
		prev = addAffiliate(t, db, fmt.Sprintf("n%d", i), prev)
	}

	tree, err := svc.Subtree(context.Background(), root.ID, 1000)
	require.NoError(t, err)

	depth := 0
	for node := tree; len(node.Children) > 0; node = node.Children[0] {
		depth++
	}
	assert.Equal(t, MaxDepth, depth)

	total, err := svc.TotalDescendants(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), total)
}

func TestSubtree_Cycle(t *testing.T) {
	db := setupNetworkTestDB(t)
	svc := NewService(repository.NewAffiliateRepository(db), 0)
	ctx := context.Background()

	a := addAffiliate(t, db, "alfa", nil)
	b := addAffiliate(t, db, "bravo", a)
	// 人为制造 a <-> b 的环
	require.NoError(t, db.Model(a).Update("sponsor_id", b.ID).Error)

	tree, err := svc.Subtree(ctx, a.ID, MaxDepth)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	assert.Empty(t, tree.Children[0].Children)

	total, err := svc.TotalDescendants(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSubtree_NotFound(t *testing.T) {
	db := setupNetworkTestDB(t)
	svc := NewService(repository.NewAffiliateRepository(db), 0)

	_, err := svc.Subtree(context.Background(), 404, 2)
	assert.ErrorIs(t, err, errors.ErrAffiliateNotFound)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestGetStats(t *testing.T) {
	db := setupNetworkTestDB(t)
	svc := NewService(repository.NewAffiliateRepository(db), 0)
	ctx := context.Background()

	root := addAffiliate(t, db, "root", nil)
	a := addAffiliate(t, db, "alfa", root)
	addAffiliate(t, db, "bravo", root)
	addAffiliate(t, db, "charlie", a)

	stats, err := svc.GetStats(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.DirectReferrals)
	assert.Equal(t, int64(3), stats.TotalDescendants)

	stats, err = svc.GetStats(ctx, 404)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.DirectReferrals)
	assert.Equal(t, int64(0), stats.TotalDescendants)
}
