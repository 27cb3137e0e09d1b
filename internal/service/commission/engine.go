package commission

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/common/tracing"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// SponsorSource 按 ID 查找推广员，不存在时返回 nil
type SponsorSource interface {
	FindByID(ctx context.Context, id int64) (*models.Affiliate, error)
}

// Allocation 单个层级的分佣结果
type Allocation struct {
	Level       int             `json:"level"`
	AffiliateID int64           `json:"affiliate_id"`
	Value       decimal.Decimal `json:"value"`
	Amount      decimal.Decimal `json:"amount"`
}

// Allocate 沿推荐链向上计算各层佣金
// 从购买者的上级开始，第 level 层取 levels[level]，金额为 0 的层级不产生记录。
// 链断开即停止；停用的上级不领取本层佣金，但继续向上且层级照常递增。
// 已访问过的节点再次出现时停止，保证异常数据下也能终止。
func Allocate(ctx context.Context, schedule *Schedule, buyerID int64, sale decimal.Decimal, src SponsorSource) ([]Allocation, error) {
	if sale.Sign() <= 0 {
		return nil, errors.ErrSaleAmountInvalid
	}

	buyer, err := src.FindByID(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if buyer == nil {
		return nil, errors.ErrAffiliateNotFound
	}

	allocations := make([]Allocation, 0, schedule.Depth)
	visited := map[int64]bool{buyer.ID: true}
	next := buyer.SponsorID

	for level := 1; level <= schedule.Depth && next != nil; level++ {
		if visited[*next] {
			logger.Warn("推荐链存在环，停止分佣",
				logger.Module("commission"),
				logger.AffiliateID(buyerID),
				logger.Int("level", level),
			)
			break
		}

		sponsor, err := src.FindByID(ctx, *next)
		if err != nil {
			return nil, err
		}
		if sponsor == nil {
			break
		}
		visited[sponsor.ID] = true

		if sponsor.IsActive {
			amount := schedule.AmountFor(level, sale)
			if amount.Sign() > 0 {
				allocations = append(allocations, Allocation{
					Level:       level,
					AffiliateID: sponsor.ID,
					Value:       schedule.Levels.Get(level),
					Amount:      amount,
				})
			}
		}

		next = sponsor.SponsorID
	}

	return allocations, nil
}

// Total 分佣合计
func Total(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// Distributor 分佣服务，负责加载方案、计算并写入佣金记录
type Distributor struct {
	settings       *SettingService
	affiliateRepo  *repository.AffiliateRepository
	commissionRepo *repository.CommissionRepository
	db             *gorm.DB
}

// NewDistributor 创建分佣服务
func NewDistributor(
	settings *SettingService,
	affiliateRepo *repository.AffiliateRepository,
	commissionRepo *repository.CommissionRepository,
	db *gorm.DB,
) *Distributor {
	return &Distributor{
		settings:       settings,
		affiliateRepo:  affiliateRepo,
		commissionRepo: commissionRepo,
		db:             db,
	}
}

// ForOrder 订单产生的佣金，按层级升序
func (d *Distributor) ForOrder(ctx context.Context, orderID int64) ([]*models.Commission, error) {
	list, err := d.commissionRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return list, nil
}

// Distribute 为一笔销售分配佣金
// tx 为调用方事务，为空时自行开启事务。购买者不存在时返回空结果。
func (d *Distributor) Distribute(ctx context.Context, tx *gorm.DB, buyerID int64, sale decimal.Decimal, orderID *int64) ([]Allocation, error) {
	if sale.Sign() <= 0 {
		return nil, errors.ErrSaleAmountInvalid
	}

	if tx == nil {
		var allocations []Allocation
		err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			allocations, err = d.distribute(ctx, tx, buyerID, sale, orderID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return allocations, nil
	}
	return d.distribute(ctx, tx, buyerID, sale, orderID)
}

// Simulation 模拟销售的分佣结果
type Simulation struct {
	BuyerAffiliateID int64           `json:"buyer_affiliate_id"`
	SaleAmount       decimal.Decimal `json:"sale_amount"`
	Total            decimal.Decimal `json:"total"`
	Persisted        bool            `json:"persisted"`
	Allocations      []Allocation    `json:"allocations"`
}

// Simulate 按当前方案为一笔不关联订单的销售计算佣金
// persist 为 false 时只计算不落库；为 true 时写入 order_id 为空的佣金记录
func (d *Distributor) Simulate(ctx context.Context, buyerID int64, sale decimal.Decimal, persist bool) (*Simulation, error) {
	if sale.Sign() <= 0 {
		return nil, errors.ErrSaleAmountInvalid
	}

	buyer, err := d.affiliateRepo.FindByID(ctx, buyerID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if buyer == nil {
		return nil, errors.ErrAffiliateNotFound
	}

	var allocations []Allocation
	if persist {
		allocations, err = d.Distribute(ctx, nil, buyerID, sale, nil)
	} else {
		allocations, err = d.preview(ctx, buyerID, sale)
	}
	if err != nil {
		return nil, err
	}

	return &Simulation{
		BuyerAffiliateID: buyerID,
		SaleAmount:       sale,
		Total:            Total(allocations),
		Persisted:        persist,
		Allocations:      allocations,
	}, nil
}

func (d *Distributor) preview(ctx context.Context, buyerID int64, sale decimal.Decimal) ([]Allocation, error) {
	schedule, err := d.settings.GetSchedule(ctx, nil)
	if err != nil {
		return nil, err
	}
	allocations, err := Allocate(ctx, schedule, buyerID, sale, d.affiliateRepo)
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return allocations, nil
}

func (d *Distributor) distribute(ctx context.Context, tx *gorm.DB, buyerID int64, sale decimal.Decimal, orderID *int64) (allocations []Allocation, err error) {
	ctx, span := tracing.Start(ctx, "commission.distribute", tracing.WithAffiliateID(buyerID))
	if orderID != nil {
		span.SetAttributes(tracing.WithOrderID(*orderID))
	}
	defer func() { tracing.End(span, err) }()

	schedule, err := d.settings.GetSchedule(ctx, tx)
	if err != nil {
		return nil, err
	}

	allocations, err = Allocate(ctx, schedule, buyerID, sale, d.affiliateRepo.WithTx(tx))
	if err != nil {
		if errors.Is(err, errors.ErrAffiliateNotFound) {
			logger.Warn("购买者不存在，跳过分佣",
				logger.Module("commission"),
				logger.AffiliateID(buyerID),
			)
			return []Allocation{}, nil
		}
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if len(allocations) == 0 {
		return allocations, nil
	}

	commissions := make([]*models.Commission, 0, len(allocations))
	for _, a := range allocations {
		commissions = append(commissions, &models.Commission{
			AffiliateID:      a.AffiliateID,
			OrderID:          orderID,
			BuyerAffiliateID: buyerID,
			Level:            a.Level,
			SaleAmount:       sale,
			ValueType:        schedule.Type,
			Value:            a.Value,
			Amount:           a.Amount,
			Status:           models.CommissionStatusPending,
		})
	}
	if err := d.commissionRepo.WithTx(tx).CreateBatch(ctx, commissions); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	for _, a := range allocations {
		metrics.RecordCommissionGlobal(a.Level, a.Amount.InexactFloat64())
	}
	logger.Info("佣金分配完成",
		logger.Module("commission"),
		logger.AffiliateID(buyerID),
		logger.Int("records", len(allocations)),
		logger.Amount(Total(allocations)),
	)

	return allocations, nil
}
