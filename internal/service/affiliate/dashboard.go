package affiliate

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
	"github.com/dumeirei/affiliate-backend/internal/service/ledger"
)

// 业绩统计参数
const (
	earningsMonths = 12
	recentActivity = 20
	monthKeyLayout = "2006-01"
)

// Dashboard 推广员首页数据
type Dashboard struct {
	Affiliate       *models.Affiliate `json:"affiliate"`
	DirectReferrals int64             `json:"direct_referrals"`
	TotalNetwork    int64             `json:"total_network"`
	Balance         *ledger.Summary   `json:"balance"`
	ActiveOrder     *models.Order     `json:"active_order"`
	ReferralLink    string            `json:"referral_link"`
}

// MonthlyEarning 月度收益
type MonthlyEarning struct {
	Month    string          `json:"month"`
	Earnings decimal.Decimal `json:"earnings"`
}

// Performance 业绩数据
type Performance struct {
	CommissionsByLevel []repository.LevelSum `json:"commissions_by_level"`
	EarningsOverTime   []MonthlyEarning      `json:"earnings_over_time"`
	RecentActivity     []*models.Commission  `json:"recent_activity"`
	PaidCommissions    decimal.Decimal       `json:"paid_commissions"`
	PendingCommissions decimal.Decimal       `json:"pending_commissions"`
	AverageCommission  decimal.Decimal       `json:"average_commission"`
}

// GetDashboard 获取推广员首页数据
func (s *Service) GetDashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	aff, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.network.GetStats(ctx, aff.ID)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.GetSummary(ctx, aff.ID)
	if err != nil {
		return nil, err
	}
	activeOrder, err := s.orderRepo.GetActiveByAffiliateID(ctx, aff.ID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		activeOrder = nil
	}

	return &Dashboard{
		Affiliate:       aff,
		DirectReferrals: stats.DirectReferrals,
		TotalNetwork:    stats.TotalDescendants,
		Balance:         balance,
		ActiveOrder:     activeOrder,
		ReferralLink:    s.ReferralLink(aff.ReferralCode),
	}, nil
}

// GetPerformance 获取业绩数据
func (s *Service) GetPerformance(ctx context.Context, userID int64) (*Performance, error) {
	aff, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.performance(ctx, aff.ID, time.Now())
}

func (s *Service) performance(ctx context.Context, affiliateID int64, now time.Time) (*Performance, error) {
	byLevel, err := s.commissionRepo.SumByLevelForAffiliate(ctx, affiliateID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	start := monthStart(now).AddDate(0, -(earningsMonths - 1), 0)
	since, err := s.commissionRepo.ListByAffiliateSince(ctx, affiliateID, start)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	recent, _, err := s.commissionRepo.ListByAffiliateID(ctx, affiliateID, 0, recentActivity, "")
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	paid, err := s.commissionRepo.SumByAffiliateID(ctx, affiliateID, models.CommissionStatusPaid)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	pending, err := s.commissionRepo.SumByAffiliateID(ctx, affiliateID, models.CommissionStatusPending)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	var count int64
	total := decimal.Zero
	for _, row := range byLevel {
		count += row.Count
		total = total.Add(row.Total)
	}
	average := decimal.Zero
	if count > 0 {
		average = total.Div(decimal.NewFromInt(count)).Round(2)
	}

	return &Performance{
		CommissionsByLevel: byLevel,
		EarningsOverTime:   groupByMonth(since, start),
		RecentActivity:     recent,
		PaidCommissions:    paid,
		PendingCommissions: pending,
		AverageCommission:  average,
	}, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// groupByMonth 按月汇总佣金，从 start 起连续 12 个月，无数据的月份为 0
func groupByMonth(commissions []*models.Commission, start time.Time) []MonthlyEarning {
	sums := make(map[string]decimal.Decimal, earningsMonths)
	for _, c := range commissions {
		key := c.CreatedAt.In(start.Location()).Format(monthKeyLayout)
		sums[key] = sums[key].Add(c.Amount)
	}

	result := make([]MonthlyEarning, 0, earningsMonths)
	for i := 0; i < earningsMonths; i++ {
		key := start.AddDate(0, i, 0).Format(monthKeyLayout)
		result = append(result, MonthlyEarning{Month: key, Earnings: sums[key]})
	}
	return result
}

// ListCommissions 推广员佣金明细
func (s *Service) ListCommissions(ctx context.Context, userID int64, offset, limit int, status string) ([]*models.Commission, int64, error) {
	aff, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if status != "" && status != models.CommissionStatusPending && status != models.CommissionStatusPaid {
		return nil, 0, errors.ErrInvalidParams.WithMessage("无效的佣金状态")
	}

	list, total, err := s.commissionRepo.ListByAffiliateID(ctx, aff.ID, offset, limit, status)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}
