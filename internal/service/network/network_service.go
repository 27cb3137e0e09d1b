// Package network 推广员团队树查询
package network

import (
	"context"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// 团队树深度
const (
	DefaultPreviewDepth = 2   // 交互预览默认层数
	MaxDepth            = 10  // 团队树最大层数
	MaxCountDepth       = 100 // 统计团队总人数时的最大层数
)

// Node 团队树节点
type Node struct {
	AffiliateID   int64   `json:"affiliate_id"`
	ReferralCode  string  `json:"referral_code"`
	FullName      string  `json:"full_name"`
	Active        bool    `json:"active"`
	LevelFromRoot int     `json:"level_from_root"`
	Children      []*Node `json:"children"`
}

// Stats 团队统计
type Stats struct {
	DirectReferrals  int64 `json:"direct_referrals"`
	TotalDescendants int64 `json:"total_descendants"`
}

// Service 团队树服务
type Service struct {
	affiliateRepo *repository.AffiliateRepository
	previewDepth  int
}

// NewService 创建团队树服务
func NewService(affiliateRepo *repository.AffiliateRepository, previewDepth int) *Service {
	if previewDepth <= 0 {
		previewDepth = DefaultPreviewDepth
	}
	if previewDepth > MaxDepth {
		previewDepth = MaxDepth
	}
	return &Service{
		affiliateRepo: affiliateRepo,
		previewDepth:  previewDepth,
	}
}

func newNode(a *models.Affiliate, level int) *Node {
	return &Node{
		AffiliateID:   a.ID,
		ReferralCode:  a.ReferralCode,
		FullName:      a.FullName,
		Active:        a.IsActive,
		LevelFromRoot: level,
		Children:      []*Node{},
	}
}

// Subtree 按层展开推广员的下级团队
// maxDepth <= 0 使用预览层数，超过 MaxDepth 按 MaxDepth 处理
func (s *Service) Subtree(ctx context.Context, affiliateID int64, maxDepth int) (*Node, error) {
	if maxDepth <= 0 {
		maxDepth = s.previewDepth
	}
	if maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}

	root, err := s.affiliateRepo.FindByID(ctx, affiliateID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if root == nil {
		return nil, errors.ErrAffiliateNotFound
	}

	rootNode := newNode(root, 0)
	visited := map[int64]bool{root.ID: true}
	frontier := map[int64]*Node{root.ID: rootNode}

	for level := 1; level <= maxDepth && len(frontier) > 0; level++ {
		ids := make([]int64, 0, len(frontier))
		for id := range frontier {
			ids = append(ids, id)
		}

		children, err := s.affiliateRepo.ListChildren(ctx, ids)
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}

		next := make(map[int64]*Node, len(children))
		for _, child := range children {
			if visited[child.ID] {
				logger.Warn("团队树存在环",
					logger.Module("network"),
					logger.AffiliateID(child.ID),
				)
				continue
			}
			parent, ok := frontier[*child.SponsorID]
			if !ok {
				continue
			}
			visited[child.ID] = true
			node := newNode(child, level)
			parent.Children = append(parent.Children, node)
			next[child.ID] = node
		}
		frontier = next
	}

	return rootNode, nil
}

// DirectReferrals 直属下级数量
func (s *Service) DirectReferrals(ctx context.Context, affiliateID int64) (int64, error) {
	count, err := s.affiliateRepo.CountChildren(ctx, affiliateID)
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}
	return count, nil
}

// TotalDescendants 团队总人数（不含自身）
func (s *Service) TotalDescendants(ctx context.Context, affiliateID int64) (int64, error) {
	visited := map[int64]bool{affiliateID: true}
	frontier := []int64{affiliateID}
	var total int64

	for level := 0; level < MaxCountDepth && len(frontier) > 0; level++ {
		ids, err := s.affiliateRepo.ListChildIDs(ctx, frontier)
		if err != nil {
			return 0, errors.ErrDatabaseError.WithError(err)
		}
		next := make([]int64, 0, len(ids))
		for _, id := range ids {
			if visited[id] {
				continue
			}
			visited[id] = true
			next = append(next, id)
		}
		total += int64(len(next))
		frontier = next
	}
	return total, nil
}

// GetStats 团队统计
func (s *Service) GetStats(ctx context.Context, affiliateID int64) (*Stats, error) {
	direct, err := s.DirectReferrals(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	total, err := s.TotalDescendants(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	return &Stats{DirectReferrals: direct, TotalDescendants: total}, nil
}
