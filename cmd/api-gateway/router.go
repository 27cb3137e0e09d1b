// Package main 是应用程序入口
package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/dumeirei/affiliate-backend/docs"
	"github.com/dumeirei/affiliate-backend/internal/common/cache"
	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/crypto"
	"github.com/dumeirei/affiliate-backend/internal/common/jwt"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	commonmw "github.com/dumeirei/affiliate-backend/internal/common/middleware"
	adminHandler "github.com/dumeirei/affiliate-backend/internal/handler/admin"
	affiliateHandler "github.com/dumeirei/affiliate-backend/internal/handler/affiliate"
	paymentHandler "github.com/dumeirei/affiliate-backend/internal/handler/payment"
	"github.com/dumeirei/affiliate-backend/internal/middleware"
	"github.com/dumeirei/affiliate-backend/internal/repository"
	affiliateService "github.com/dumeirei/affiliate-backend/internal/service/affiliate"
	"github.com/dumeirei/affiliate-backend/internal/service/commission"
	"github.com/dumeirei/affiliate-backend/internal/service/ledger"
	"github.com/dumeirei/affiliate-backend/internal/service/network"
	orderService "github.com/dumeirei/affiliate-backend/internal/service/order"
	"github.com/dumeirei/affiliate-backend/internal/service/report"
	"github.com/dumeirei/affiliate-backend/internal/service/withdrawal"
	"github.com/dumeirei/affiliate-backend/pkg/mercadopago"
)

// setupRouter 设置路由，m 为 nil 时不暴露指标
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	m *metrics.Metrics,
) error {
	// 创建 JWT 管理器
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:           cfg.JWT.Secret,
		AccessExpireTime: cfg.JWT.AccessTokenDuration(),
		Issuer:           cfg.JWT.Issuer,
		Leeway:           cfg.JWT.LeewayDuration(),
	})

	cipher, err := crypto.NewAESFromSecret(cfg.Crypto.MasterKey, cfg.Crypto.Salt)
	if err != nil {
		return err
	}

	// 初始化仓储
	affiliateRepo := repository.NewAffiliateRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	settingRepo := repository.NewCommissionSettingRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	operationLogRepo := repository.NewOperationLogRepository(db)

	// 初始化外部服务客户端
	gateway := mercadopago.NewClient(mercadopago.Config{
		AccessToken: cfg.Gateway.AccessToken,
		BaseURL:     cfg.Gateway.BaseURL,
		Timeout:     cfg.Gateway.TimeoutDuration(),
	})
	locker := cache.NewLocker(redisClient, cfg.Business.Webhook.LockTTLDuration())

	// 初始化服务
	settingSvc := commission.NewSettingService(settingRepo, cfg.Business.TenantID)
	distributor := commission.NewDistributor(settingSvc, affiliateRepo, commissionRepo, db)
	ledgerSvc := ledger.NewService(commissionRepo, withdrawalRepo)
	networkSvc := network.NewService(affiliateRepo, cfg.Business.Network.PreviewDepth)
	affiliateSvc := affiliateService.NewService(
		affiliateRepo, commissionRepo, orderRepo, withdrawalRepo,
		ledgerSvc, networkSvc, cipher, cfg.Business.SiteURL,
	)
	withdrawalSvc := withdrawal.NewService(db, affiliateRepo, withdrawalRepo, ledgerSvc, cipher)
	withdrawalSvc.SetMinAmount(cfg.Business.Withdrawal.MinAmountDecimal())
	orderSvc := orderService.NewLifecycleService(db, orderRepo, affiliateRepo, distributor, gateway, locker, orderService.Options{
		PlanName:        cfg.Business.Plan.Name,
		PlanPrice:       cfg.Business.Plan.PriceDecimal(),
		Currency:        cfg.Business.Plan.Currency,
		NotificationURL: cfg.Gateway.NotificationURL,
		SuccessURL:      cfg.Gateway.SuccessURL,
		FailureURL:      cfg.Gateway.FailureURL,
		GatewayTimeout:  cfg.Gateway.TimeoutDuration(),
	})
	reportSvc := report.NewService(affiliateRepo, orderRepo, commissionRepo, withdrawalRepo)

	// 初始化处理器
	affiliateH := affiliateHandler.NewHandler(affiliateSvc, networkSvc, ledgerSvc, withdrawalSvc, orderSvc)
	paymentH := paymentHandler.NewHandler(orderSvc, affiliateSvc)
	settingH := adminHandler.NewCommissionSettingHandler(settingSvc, distributor)
	withdrawalH := adminHandler.NewWithdrawalHandler(withdrawalSvc)
	orderH := adminHandler.NewOrderHandler(orderSvc)
	adminAffiliateH := adminHandler.NewAffiliateHandler(affiliateSvc, networkSvc)
	reportH := adminHandler.NewReportHandler(reportSvc)
	operationLogH := adminHandler.NewOperationLogHandler(operationLogRepo)
	operationLogger := commonmw.NewOperationLogger(operationLogRepo)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS(&middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))
	r.Use(middleware.AccessLog(&middleware.AccessLogConfig{
		Logger:        logger,
		SkipPaths:     []string{"/health", "/ping", "/ready", cfg.Metrics.Path},
		SlowThreshold: cfg.Server.SlowRequestDuration(),
	}))
	r.Use(middleware.RequestSizeLimiter(cfg.Server.MaxBodyBytes))
	if cfg.Tracing.Enabled {
		r.Use(commonmw.Tracing(&commonmw.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SkipPaths:   []string{"/health", "/ping", "/ready", cfg.Metrics.Path},
		}))
	}
	if m != nil {
		r.Use(m.Middleware(cfg.Metrics.Path, "/health", "/ping", "/ready"))
		r.GET(cfg.Metrics.Path, m.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient))

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 限流中间件，未启用或无 Redis 时为 nil
	var webhookLimiter, withdrawLimiter gin.HandlerFunc
	if cfg.RateLimit.Enabled && redisClient != nil {
		if cfg.RateLimit.WebhookPerMin > 0 {
			webhookLimiter = middleware.IPRateLimit(redisClient, cfg.RateLimit.WebhookPerMin, time.Minute)
		}
		if cfg.RateLimit.WithdrawPerMin > 0 {
			withdrawLimiter = middleware.UserRateLimit(redisClient, cfg.RateLimit.WithdrawPerMin, time.Minute)
		}
	}

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 支付通知（无需认证）
		paymentH.RegisterWebhookRoutes(v1, webhookLimiter)

		// 推广员接口
		user := v1.Group("")
		user.Use(middleware.UserAuth(jwtManager))
		{
			affiliateH.RegisterRoutes(user, withdrawLimiter)
			paymentH.RegisterRoutes(user)
		}

		// 管理端接口
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(jwtManager), operationLogger.Log())
		{
			can := middleware.RequirePermission

			settingH.RegisterRoutes(admin, can(middleware.PermCommissionSettingWrite))
			withdrawalH.RegisterRoutes(admin, can(middleware.PermWithdrawalResolve))
			orderH.RegisterRoutes(admin, can(middleware.PermOrderWrite))
			adminAffiliateH.RegisterRoutes(admin, can(middleware.PermAffiliateWrite), can(middleware.PermAffiliateDelete))
			reportH.RegisterRoutes(admin)
			operationLogH.RegisterRoutes(admin, can(middleware.PermOperationLogRead))
		}
	}

	return nil
}
