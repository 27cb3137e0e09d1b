package admin

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/service/report"
)

// ReportHandler 统计报表处理器
type ReportHandler struct {
	reportService *report.Service
	now           func() time.Time
}

// NewReportHandler 创建统计报表处理器
func NewReportHandler(reportSvc *report.Service) *ReportHandler {
	return &ReportHandler{
		reportService: reportSvc,
		now:           time.Now,
	}
}

// period 解析 period/start_date/end_date 查询参数
func (h *ReportHandler) period(c *gin.Context) (*report.Period, bool) {
	p, err := report.ParsePeriod(c.Query("period"), c.Query("start_date"), c.Query("end_date"), h.now())
	if handler.HandleError(c, err) {
		return nil, false
	}
	return p, true
}

// Dashboard 管理端总览
// @Summary 管理端总览
// @Tags 管理-报表
// @Produce json
// @Security Bearer
// @Param period query string false "统计周期: today/week/month/year" default(month)
// @Param start_date query string false "开始日期 YYYY-MM-DD"
// @Param end_date query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=report.Dashboard}
// @Router /api/v1/admin/reports/dashboard [get]
func (h *ReportHandler) Dashboard(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}

	d, err := h.reportService.GetDashboard(c.Request.Context(), p)
	handler.MustSucceed(c, err, d)
}

// CommissionsByLevel 按层级汇总佣金
// @Summary 按层级汇总佣金
// @Tags 管理-报表
// @Produce json
// @Security Bearer
// @Param period query string false "统计周期: today/week/month/year" default(month)
// @Param start_date query string false "开始日期 YYYY-MM-DD"
// @Param end_date query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=[]repository.LevelSum}
// @Router /api/v1/admin/reports/commissions-by-level [get]
func (h *ReportHandler) CommissionsByLevel(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}

	rows, err := h.reportService.CommissionsByLevel(c.Request.Context(), p)
	handler.MustSucceed(c, err, rows)
}

// TopAffiliates 收益排行
// @Summary 收益排行
// @Tags 管理-报表
// @Produce json
// @Security Bearer
// @Param period query string false "统计周期: today/week/month/year" default(month)
// @Param start_date query string false "开始日期 YYYY-MM-DD"
// @Param end_date query string false "结束日期 YYYY-MM-DD"
// @Param limit query int false "数量" default(10)
// @Success 200 {object} response.Response{data=[]report.TopAffiliate}
// @Router /api/v1/admin/reports/top-affiliates [get]
func (h *ReportHandler) TopAffiliates(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	rows, err := h.reportService.TopAffiliates(c.Request.Context(), p, limit)
	handler.MustSucceed(c, err, rows)
}

// OrdersByStatus 各状态订单数量
// @Summary 各状态订单数量
// @Tags 管理-报表
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/admin/reports/orders-by-status [get]
func (h *ReportHandler) OrdersByStatus(c *gin.Context) {
	counts, err := h.reportService.OrdersByStatus(c.Request.Context())
	handler.MustSucceed(c, err, counts)
}

// Revenue 月度收入
// @Summary 月度收入
// @Tags 管理-报表
// @Produce json
// @Security Bearer
// @Param period query string false "统计周期: today/week/month/year" default(month)
// @Param start_date query string false "开始日期 YYYY-MM-DD"
// @Param end_date query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=[]report.MonthlyRevenue}
// @Router /api/v1/admin/reports/revenue [get]
func (h *ReportHandler) Revenue(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}

	rows, err := h.reportService.Revenue(c.Request.Context(), p)
	handler.MustSucceed(c, err, rows)
}

// Growth 推广员增长
// @Summary 推广员增长
// @Tags 管理-报表
// @Produce json
// @Security Bearer
// @Param period query string false "统计周期: today/week/month/year" default(month)
// @Param start_date query string false "开始日期 YYYY-MM-DD"
// @Param end_date query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=[]report.MonthlyGrowth}
// @Router /api/v1/admin/reports/growth [get]
func (h *ReportHandler) Growth(c *gin.Context) {
	p, ok := h.period(c)
	if !ok {
		return
	}

	rows, err := h.reportService.Growth(c.Request.Context(), p)
	handler.MustSucceed(c, err, rows)
}

// RegisterRoutes 注册路由
func (h *ReportHandler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.GET("/dashboard", h.Dashboard)
		reports.GET("/commissions-by-level", h.CommissionsByLevel)
		reports.GET("/top-affiliates", h.TopAffiliates)
		reports.GET("/orders-by-status", h.OrdersByStatus)
		reports.GET("/revenue", h.Revenue)
		reports.GET("/growth", h.Growth)
	}
}
