// Package commission 佣金配置与分佣引擎
package commission

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// 层级深度范围
const (
	DefaultDepth = 5
	MinDepth     = 1
	MaxDepth     = 10
)

var hundred = decimal.NewFromInt(100)

// Schedule 一次分佣使用的佣金方案，加载后不再修改
type Schedule struct {
	Depth      int
	Type       string
	Levels     models.LevelValues
	Configured bool
}

// DefaultSchedule 未配置时的方案：5 层，按百分比，各层为 0
func DefaultSchedule() *Schedule {
	return &Schedule{
		Depth:  DefaultDepth,
		Type:   models.CommissionTypePercent,
		Levels: models.LevelValues{},
	}
}

// AmountFor 计算某层级的佣金金额，百分比方式截断到分
func (s *Schedule) AmountFor(level int, sale decimal.Decimal) decimal.Decimal {
	value := s.Levels.Get(level)
	if value.Sign() <= 0 {
		return decimal.Zero
	}
	if s.Type == models.CommissionTypeFixed {
		return value
	}
	return sale.Mul(value).Div(hundred).Truncate(2)
}

// LevelConfig 单个层级的配置值
type LevelConfig struct {
	Level int             `json:"level"`
	Value decimal.Decimal `json:"value"`
}

// ConfigView 管理端查看的佣金配置
type ConfigView struct {
	TenantID   string        `json:"tenant_id"`
	Depth      int           `json:"depth"`
	Type       string        `json:"type"`
	Levels     []LevelConfig `json:"levels"`
	Configured bool          `json:"configured"`
	UpdatedAt  *time.Time    `json:"updated_at,omitempty"`
}

// UpdateConfigRequest 更新佣金配置请求
type UpdateConfigRequest struct {
	Depth  int                     `json:"depth" binding:"required"`
	Type   string                  `json:"type" binding:"required"`
	Levels map[int]decimal.Decimal `json:"levels"`
}

// SettingService 佣金配置服务
type SettingService struct {
	repo     *repository.CommissionSettingRepository
	tenantID string
}

// NewSettingService 创建佣金配置服务
func NewSettingService(repo *repository.CommissionSettingRepository, tenantID string) *SettingService {
	return &SettingService{repo: repo, tenantID: tenantID}
}

// GetSchedule 读取当前佣金方案，每次调用都从数据库加载
// tx 不为空时在该事务内读取
func (s *SettingService) GetSchedule(ctx context.Context, tx *gorm.DB) (*Schedule, error) {
	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}

	setting, err := repo.GetByTenantID(ctx, s.tenantID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			logger.Warn("佣金配置不存在，使用默认配置",
				logger.Module("commission"),
				logger.Action("load_schedule"),
			)
			return DefaultSchedule(), nil
		}
		if stderrors.Is(err, models.ErrLevelValuesCorrupt) {
			logger.Error("佣金配置解析失败", logger.Module("commission"), logger.Err(err))
			return nil, errors.ErrCommissionConfigCorrupt.WithError(err)
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if setting.Depth < MinDepth || setting.Depth > MaxDepth || !validType(setting.Type) {
		logger.Error("佣金配置数据非法",
			logger.Module("commission"),
			logger.Action("load_schedule"),
		)
		return nil, errors.ErrCommissionConfigCorrupt
	}

	return &Schedule{
		Depth:      setting.Depth,
		Type:       setting.Type,
		Levels:     setting.Levels.Prune(setting.Depth),
		Configured: true,
	}, nil
}

// GetConfig 获取管理端配置视图，1..depth 每层都有值，未设置为 0
func (s *SettingService) GetConfig(ctx context.Context) (*ConfigView, error) {
	schedule, err := s.GetSchedule(ctx, nil)
	if err != nil {
		return nil, err
	}

	view := s.toView(schedule)
	if schedule.Configured {
		setting, err := s.repo.GetByTenantID(ctx, s.tenantID)
		if err == nil {
			view.UpdatedAt = &setting.UpdatedAt
		}
	}
	return view, nil
}

// UpdateConfig 更新佣金配置，超出深度的层级会被丢弃
func (s *SettingService) UpdateConfig(ctx context.Context, operatorID int64, req *UpdateConfigRequest) (*ConfigView, error) {
	levels, err := validateConfig(req.Depth, req.Type, req.Levels)
	if err != nil {
		return nil, err
	}

	setting := &models.CommissionSetting{
		TenantID:  s.tenantID,
		Depth:     req.Depth,
		Type:      req.Type,
		Levels:    levels,
		UpdatedBy: &operatorID,
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("佣金配置已更新",
		logger.Module("commission"),
		logger.AdminID(operatorID),
	)

	return s.GetConfig(ctx)
}

// UpdateLevel 修改单个层级的配置值
func (s *SettingService) UpdateLevel(ctx context.Context, operatorID int64, level int, value decimal.Decimal) (*ConfigView, error) {
	schedule, err := s.GetSchedule(ctx, nil)
	if err != nil {
		return nil, err
	}
	if level < 1 || level > schedule.Depth {
		return nil, errors.ErrCommissionConfigInvalid.WithMessagef("层级必须在 1 到 %d 之间", schedule.Depth)
	}

	levels := make(map[int]decimal.Decimal, len(schedule.Levels)+1)
	for l, v := range schedule.Levels {
		levels[l] = v
	}
	levels[level] = value

	return s.UpdateConfig(ctx, operatorID, &UpdateConfigRequest{
		Depth:  schedule.Depth,
		Type:   schedule.Type,
		Levels: levels,
	})
}

func (s *SettingService) toView(schedule *Schedule) *ConfigView {
	view := &ConfigView{
		TenantID:   s.tenantID,
		Depth:      schedule.Depth,
		Type:       schedule.Type,
		Levels:     make([]LevelConfig, 0, schedule.Depth),
		Configured: schedule.Configured,
	}
	for level := 1; level <= schedule.Depth; level++ {
		view.Levels = append(view.Levels, LevelConfig{Level: level, Value: schedule.Levels.Get(level)})
	}
	return view
}

func validType(t string) bool {
	return t == models.CommissionTypePercent || t == models.CommissionTypeFixed
}

// validateConfig 校验配置并返回裁剪后的层级值
func validateConfig(depth int, typ string, levels map[int]decimal.Decimal) (models.LevelValues, error) {
	if depth < MinDepth || depth > MaxDepth {
		return nil, errors.ErrCommissionConfigInvalid.WithMessagef("层级深度必须在 %d 到 %d 之间", MinDepth, MaxDepth)
	}
	if !validType(typ) {
		return nil, errors.ErrCommissionConfigInvalid.WithMessage("佣金类型必须为 percent 或 fixed")
	}

	for level, value := range levels {
		if level < 1 {
			return nil, errors.ErrCommissionConfigInvalid.WithMessage("层级必须从 1 开始")
		}
		if value.IsNegative() {
			return nil, errors.ErrCommissionConfigInvalid.WithMessagef("第 %d 层的值不能为负数", level)
		}
		if !value.Equal(value.Truncate(2)) {
			return nil, errors.ErrCommissionConfigInvalid.WithMessagef("第 %d 层的值最多保留两位小数", level)
		}
		if typ == models.CommissionTypePercent && value.GreaterThan(hundred) {
			return nil, errors.ErrCommissionConfigInvalid.WithMessagef("第 %d 层的比例不能超过 100", level)
		}
	}

	pruned := models.LevelValues(levels).Prune(depth)
	if typ == models.CommissionTypePercent && pruned.Sum().GreaterThan(hundred) {
		return nil, errors.ErrCommissionConfigInvalid.WithMessage("各层比例之和不能超过 100")
	}
	return pruned, nil
}
