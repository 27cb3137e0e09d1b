// Package config 提供应用配置管理功能
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	once         sync.Once
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Crypto    CryptoConfig    `mapstructure:"crypto"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Business  BusinessConfig  `mapstructure:"business"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Name            string `mapstructure:"name"`
	Mode            string `mapstructure:"mode"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
	SlowRequestMS   int    `mapstructure:"slow_request_ms"`
}

// SlowRequestDuration 慢请求阈值
func (s *ServerConfig) SlowRequestDuration() time.Duration {
	return time.Duration(s.SlowRequestMS) * time.Millisecond
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogMode         bool   `mapstructure:"log_mode"`
	SlowThreshold   int    `mapstructure:"slow_threshold"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Timezone,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// Addr 返回 Redis 地址
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	AccessTokenExpire int    `mapstructure:"access_token_expire"`
	Issuer            string `mapstructure:"issuer"`
	Leeway            int    `mapstructure:"leeway"`
}

// AccessTokenDuration 返回访问令牌有效期
func (j *JWTConfig) AccessTokenDuration() time.Duration {
	return time.Duration(j.AccessTokenExpire) * time.Hour
}

// LeewayDuration 返回校验时间容差
func (j *JWTConfig) LeewayDuration() time.Duration {
	return time.Duration(j.Leeway) * time.Second
}

// CryptoConfig 加密配置
type CryptoConfig struct {
	// MasterKey 用于派生收款账户加密密钥
	MasterKey string `mapstructure:"master_key"`
	Salt      string `mapstructure:"salt"`
}

// GatewayConfig 支付网关配置
type GatewayConfig struct {
	Provider        string `mapstructure:"provider"`
	AccessToken     string `mapstructure:"access_token"`
	BaseURL         string `mapstructure:"base_url"`
	Timeout         int    `mapstructure:"timeout"`
	NotificationURL string `mapstructure:"notification_url"`
	SuccessURL      string `mapstructure:"success_url"`
	FailureURL      string `mapstructure:"failure_url"`
}

// TimeoutDuration 返回网关请求超时
func (g *GatewayConfig) TimeoutDuration() time.Duration {
	if g.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.Timeout) * time.Second
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Caller     bool   `mapstructure:"caller"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	WebhookPerMin  int  `mapstructure:"webhook_per_min"`
	WithdrawPerMin int  `mapstructure:"withdraw_per_min"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// BusinessConfig 业务配置
type BusinessConfig struct {
	TenantID   string           `mapstructure:"tenant_id"`
	SiteURL    string           `mapstructure:"site_url"`
	Plan       PlanConfig       `mapstructure:"plan"`
	Network    NetworkConfig    `mapstructure:"network"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Audit      AuditConfig      `mapstructure:"audit"`
}

// AuditConfig 管理端审计日志配置
type AuditConfig struct {
	RetentionDays int `mapstructure:"retention_days"` // 0 表示永久保留
}

// RetentionDuration 审计日志保留时长
func (a *AuditConfig) RetentionDuration() time.Duration {
	return time.Duration(a.RetentionDays) * 24 * time.Hour
}

// PlanConfig 订阅套餐配置
type PlanConfig struct {
	Name     string `mapstructure:"name"`
	Price    string `mapstructure:"price"`
	Currency string `mapstructure:"currency"`
}

// PriceDecimal 返回套餐价格，配置非法时返回零
func (p *PlanConfig) PriceDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(p.Price)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NetworkConfig 团队树配置
type NetworkConfig struct {
	PreviewDepth int `mapstructure:"preview_depth"`
	ReportDepth  int `mapstructure:"report_depth"`
}

// WithdrawalConfig 提现配置
type WithdrawalConfig struct {
	MinAmount string `mapstructure:"min_amount"`
}

// MinAmountDecimal 返回最低提现金额
func (w *WithdrawalConfig) MinAmountDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(w.MinAmount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// WebhookConfig 支付通知配置
type WebhookConfig struct {
	LockTTL int `mapstructure:"lock_ttl"`
}

// LockTTLDuration 返回通知处理锁有效期
func (w *WebhookConfig) LockTTLDuration() time.Duration {
	if w.LockTTL <= 0 {
		return 30 * time.Second
	}
	return time.Duration(w.LockTTL) * time.Second
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		// .env 文件可选
		_ = godotenv.Load()

		v := viper.New()

		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./configs")
			v.AddConfigPath(".")
		}

		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		setDefaults(v)

		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认值
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		globalConfig = &Config{}
		if err = v.Unmarshal(globalConfig); err != nil {
			return
		}
	})

	return globalConfig, err
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		globalConfig = Default()
	}
	return globalConfig
}

// Default 返回仅包含默认值的配置
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	_ = v.Unmarshal(cfg)
	return cfg
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "affiliate-backend")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.shutdown_timeout", 10)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.slow_request_ms", 2000)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "affiliate")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "America/Sao_Paulo")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_mode", false)
	v.SetDefault("database.slow_threshold", 200)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 50)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.dial_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("jwt.secret", "your-super-secret-key-change-in-production")
	v.SetDefault("jwt.access_token_expire", 168)
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.leeway", 30)

	v.SetDefault("crypto.master_key", "change-this-master-key-in-production")
	v.SetDefault("crypto.salt", "affiliate-payout-key")

	v.SetDefault("gateway.provider", "mercadopago")
	v.SetDefault("gateway.access_token", "")
	v.SetDefault("gateway.base_url", "https://api.mercadopago.com")
	v.SetDefault("gateway.timeout", 10)

	v.SetDefault("logger.level", "debug")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "./logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.caller", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "affiliate")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "affiliate-backend")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.webhook_per_min", 120)
	v.SetDefault("ratelimit.withdraw_per_min", 10)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 86400)

	v.SetDefault("business.tenant_id", "default")
	v.SetDefault("business.site_url", "http://localhost:5173")
	v.SetDefault("business.plan.name", "Assinatura Mensal")
	v.SetDefault("business.plan.price", "289.90")
	v.SetDefault("business.plan.currency", "BRL")
	v.SetDefault("business.network.preview_depth", 2)
	v.SetDefault("business.network.report_depth", 10)
	v.SetDefault("business.withdrawal.min_amount", "0")
	v.SetDefault("business.webhook.lock_ttl", 30)
	v.SetDefault("business.audit.retention_days", 180)
}

// GinMode 按 server.mode 返回 gin 运行模式，production 视同 release
func (c *Config) GinMode() string {
	switch c.Server.Mode {
	case "release", "production":
		return "release"
	case "test":
		return "test"
	default:
		return "debug"
	}
}
