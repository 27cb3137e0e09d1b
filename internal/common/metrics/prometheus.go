// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 分布式锁获取结果
const (
	LockAcquired = "acquired"
	LockBusy     = "busy"
	LockError    = "error"
)

// Metrics 指标收集器，每个实例持有独立的注册表
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	lockAttemptsTotal    *prometheus.CounterVec
	webhooksTotal        *prometheus.CounterVec
	gatewayDuration      *prometheus.HistogramVec
	commissionsTotal     *prometheus.CounterVec
	commissionAmount     prometheus.Counter
	withdrawalsTotal     *prometheus.CounterVec
	ordersTotal          *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	mu             sync.Mutex
)

// Init 创建收集器并设为全局实例
func Init(namespace string) *Metrics {
	m := New(namespace)
	mu.Lock()
	defaultMetrics = m
	mu.Unlock()
	return m
}

// New 创建收集器，附带 Go 运行时与进程指标
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "affiliate"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)
	f := promauto.With(reg)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
	}

	return &Metrics{
		registry: reg,

		httpRequestsTotal: counter("http_requests_total",
			"HTTP requests by route and status", "method", "route", "status"),
		httpRequestDuration: histogram("http_request_duration_seconds",
			"HTTP request latency by route", prometheus.DefBuckets, "method", "route"),
		httpRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),
		lockAttemptsTotal: counter("lock_attempts_total",
			"Distributed lock attempts by result", "result"),
		webhooksTotal: counter("payment_webhooks_total",
			"Payment notifications by handling result", "result"),
		gatewayDuration: histogram("gateway_request_duration_seconds",
			"Payment gateway call latency", []float64{.05, .1, .25, .5, 1, 2.5, 5, 10}, "operation", "outcome"),
		commissionsTotal: counter("commissions_total",
			"Commission records created by level", "level"),
		commissionAmount: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_amount_total",
			Help:      "Sum of commission amounts created",
		}),
		withdrawalsTotal: counter("withdrawals_total",
			"Withdrawal events by status", "status"),
		ordersTotal: counter("orders_total",
			"Order status transitions by target status", "status"),
	}
}

func current() *Metrics {
	mu.Lock()
	defer mu.Unlock()
	if defaultMetrics == nil {
		defaultMetrics = New("")
	}
	return defaultMetrics
}

// Middleware 统计 HTTP 请求，skipPaths 中的路径不计入
func (m *Metrics) Middleware(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler 暴露本实例注册表的指标
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return gin.WrapH(h)
}

// RecordLockAttempt 记录分布式锁获取结果
func (m *Metrics) RecordLockAttempt(result string) {
	m.lockAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordWebhook 记录支付通知处理结果
func (m *Metrics) RecordWebhook(result string) {
	m.webhooksTotal.WithLabelValues(result).Inc()
}

// RecordGatewayCall 记录支付网关调用耗时
func (m *Metrics) RecordGatewayCall(operation string, success bool, duration time.Duration) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.gatewayDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordCommission 记录一条佣金
func (m *Metrics) RecordCommission(level int, amount float64) {
	m.commissionsTotal.WithLabelValues(strconv.Itoa(level)).Inc()
	m.commissionAmount.Add(amount)
}

func (m *Metrics) RecordWithdrawal(status string) {
	m.withdrawalsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordOrder(status string) {
	m.ordersTotal.WithLabelValues(status).Inc()
}

// 以下函数写入全局实例，供不持有 *Metrics 的服务层调用

func RecordLockAttemptGlobal(result string) { current().RecordLockAttempt(result) }

func RecordWebhookGlobal(result string) { current().RecordWebhook(result) }

func RecordGatewayCallGlobal(operation string, success bool, duration time.Duration) {
	current().RecordGatewayCall(operation, success, duration)
}

func RecordCommissionGlobal(level int, amount float64) { current().RecordCommission(level, amount) }

func RecordWithdrawalGlobal(status string) { current().RecordWithdrawal(status) }

func RecordOrderGlobal(status string) { current().RecordOrder(status) }
