// Package report 提供管理端统计报表服务
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// 统计周期
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

const (
	dateLayout      = "2006-01-02"
	monthLayout     = "2006-01"
	defaultTopLimit = 10
	maxTopLimit     = 100
)

// Period 统计区间 [Start, End)
type Period struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParsePeriod 解析统计区间
// 指定 start_date/end_date 时优先使用，结束日期包含当天；否则按 period 计算，默认本月
func ParsePeriod(period, startDate, endDate string, now time.Time) (*Period, error) {
	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return nil, errors.ErrInvalidParams.WithMessage("开始日期和结束日期需同时提供")
		}
		start, err := time.ParseInLocation(dateLayout, startDate, now.Location())
		if err != nil {
			return nil, errors.ErrInvalidParams.WithMessage("开始日期格式错误，应为 YYYY-MM-DD")
		}
		end, err := time.ParseInLocation(dateLayout, endDate, now.Location())
		if err != nil {
			return nil, errors.ErrInvalidParams.WithMessage("结束日期格式错误，应为 YYYY-MM-DD")
		}
		if end.Before(start) {
			return nil, errors.ErrInvalidParams.WithMessage("结束日期不能早于开始日期")
		}
		return &Period{Name: "custom", Start: start, End: end.AddDate(0, 0, 1)}, nil
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)
	switch period {
	case PeriodToday:
		return &Period{Name: period, Start: today, End: tomorrow}, nil
	case PeriodWeek:
		return &Period{Name: period, Start: today.AddDate(0, 0, -6), End: tomorrow}, nil
	case PeriodMonth, "":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &Period{Name: PeriodMonth, Start: start, End: tomorrow}, nil
	case PeriodYear:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return &Period{Name: period, Start: start, End: tomorrow}, nil
	}
	return nil, errors.ErrInvalidParams.WithMessagef("不支持的统计周期: %s", period)
}

// Service 报表服务
type Service struct {
	affiliateRepo  *repository.AffiliateRepository
	orderRepo      *repository.OrderRepository
	commissionRepo *repository.CommissionRepository
	withdrawalRepo *repository.WithdrawalRepository
}

// NewService 创建报表服务
func NewService(
	affiliateRepo *repository.AffiliateRepository,
	orderRepo *repository.OrderRepository,
	commissionRepo *repository.CommissionRepository,
	withdrawalRepo *repository.WithdrawalRepository,
) *Service {
	return &Service{
		affiliateRepo:  affiliateRepo,
		orderRepo:      orderRepo,
		commissionRepo: commissionRepo,
		withdrawalRepo: withdrawalRepo,
	}
}

// Dashboard 管理端总览
type Dashboard struct {
	Period             *Period         `json:"period"`
	TotalAffiliates    int64           `json:"total_affiliates"`
	NewAffiliates      int64           `json:"new_affiliates"`
	ActiveOrders       int64           `json:"active_orders"`
	PaidOrders         int64           `json:"paid_orders"`
	Revenue            decimal.Decimal `json:"revenue"`
	Commissions        decimal.Decimal `json:"commissions"`
	PendingWithdrawals int64           `json:"pending_withdrawals"`
	WithdrawalsPaid    decimal.Decimal `json:"withdrawals_paid"`
}

// GetDashboard 管理端总览
func (s *Service) GetDashboard(ctx context.Context, p *Period) (*Dashboard, error) {
	d := &Dashboard{Period: p}

	total, err := s.affiliateRepo.Count(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	d.TotalAffiliates = total

	before, err := s.affiliateRepo.CountCreatedBefore(ctx, p.Start)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	until, err := s.affiliateRepo.CountCreatedBefore(ctx, p.End)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	d.NewAffiliates = until - before

	counts, err := s.orderRepo.CountByStatus(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	d.ActiveOrders = counts[models.OrderStatusActive]

	d.Revenue, d.PaidOrders, err = s.orderRepo.SumPaidBetween(ctx, p.Start, p.End)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	d.Commissions, err = s.commissionRepo.SumBetween(ctx, p.Start, p.End)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	d.PendingWithdrawals, err = s.withdrawalRepo.CountByStatus(ctx, models.WithdrawalStatusPending)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	d.WithdrawalsPaid, err = s.withdrawalRepo.SumByStatusBetween(ctx, models.WithdrawalStatusPaid, p.Start, p.End)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	return d, nil
}

// CommissionsByLevel 按层级汇总佣金
func (s *Service) CommissionsByLevel(ctx context.Context, p *Period) ([]repository.LevelSum, error) {
	rows, err := s.commissionRepo.SumByLevel(ctx, p.Start, p.End)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if rows == nil {
		rows = []repository.LevelSum{}
	}
	return rows, nil
}

// TopAffiliate 收益排行
type TopAffiliate struct {
	AffiliateID  int64           `json:"affiliate_id"`
	FullName     string          `json:"full_name"`
	ReferralCode string          `json:"referral_code"`
	Count        int64           `json:"count"`
	Total        decimal.Decimal `json:"total"`
}

// TopAffiliates 佣金收益最高的推广员
func (s *Service) TopAffiliates(ctx context.Context, p *Period, limit int) ([]TopAffiliate, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	rows, err := s.commissionRepo.TopAffiliates(ctx, p.Start, p.End, limit)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.AffiliateID)
	}
	affiliates, err := s.affiliateRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	byID := make(map[int64]*models.Affiliate, len(affiliates))
	for _, a := range affiliates {
		byID[a.ID] = a
	}

	result := make([]TopAffiliate, 0, len(rows))
	for _, r := range rows {
		item := TopAffiliate{AffiliateID: r.AffiliateID, Count: r.Count, Total: r.Total}
		if a, ok := byID[r.AffiliateID]; ok {
			item.FullName = a.FullName
			item.ReferralCode = a.ReferralCode
		}
		result = append(result, item)
	}
	return result, nil
}

// OrdersByStatus 各状态订单数量，所有状态都会出现
func (s *Service) OrdersByStatus(ctx context.Context) (map[string]int64, error) {
	counts, err := s.orderRepo.CountByStatus(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	for _, status := range []string{
		models.OrderStatusPending,
		models.OrderStatusActive,
		models.OrderStatusCancelled,
		models.OrderStatusSuspended,
	} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

// MonthlyRevenue 月度收入
type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Revenue 按月统计已支付订单收入，区间内每个月都有一项
func (s *Service) Revenue(ctx context.Context, p *Period) ([]MonthlyRevenue, error) {
	orders, err := s.orderRepo.ListPaidBetween(ctx, p.Start, p.End)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	months := monthKeys(p)
	index := make(map[string]int, len(months))
	result := make([]MonthlyRevenue, len(months))
	for i, m := range months {
		index[m] = i
		result[i] = MonthlyRevenue{Month: m, Revenue: decimal.Zero}
	}
	for _, o := range orders {
		if o.PaidAt == nil {
			continue
		}
		i, ok := index[o.PaidAt.In(p.Start.Location()).Format(monthLayout)]
		if !ok {
			continue
		}
		result[i].Orders++
		result[i].Revenue = result[i].Revenue.Add(o.Amount)
	}
	return result, nil
}

// MonthlyGrowth 月度推广员增长
type MonthlyGrowth struct {
	Month      string `json:"month"`
	New        int64  `json:"new"`
	Referred   int64  `json:"referred"`
	Cumulative int64  `json:"cumulative"`
}

// Growth 按月统计新增推广员，Referred 为通过推荐码注册的数量
func (s *Service) Growth(ctx context.Context, p *Period) ([]MonthlyGrowth, error) {
	base, err := s.affiliateRepo.CountCreatedBefore(ctx, p.Start)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	list, err := s.affiliateRepo.ListCreatedBetween(ctx, p.Start, p.End)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	months := monthKeys(p)
	index := make(map[string]int, len(months))
	result := make([]MonthlyGrowth, len(months))
	for i, m := range months {
		index[m] = i
		result[i].Month = m
	}
	for _, a := range list {
		i, ok := index[a.CreatedAt.In(p.Start.Location()).Format(monthLayout)]
		if !ok {
			continue
		}
		result[i].New++
		if a.SponsorID != nil {
			result[i].Referred++
		}
	}

	cumulative := base
	for i := range result {
		cumulative += result[i].New
		result[i].Cumulative = cumulative
	}
	return result, nil
}

// monthKeys 区间覆盖的月份
func monthKeys(p *Period) []string {
	var keys []string
	cur := time.Date(p.Start.Year(), p.Start.Month(), 1, 0, 0, 0, 0, p.Start.Location())
	for cur.Before(p.End) {
		keys = append(keys, cur.Format(monthLayout))
		cur = cur.AddDate(0, 1, 0)
	}
	return keys
}
