// Package tracing 提供 OpenTelemetry 分布式追踪
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config 追踪配置
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string // OTLP gRPC 地址，为空时输出到 stdout
	SampleRate     float64
	Enabled        bool
}

// Tracer 进程级追踪器，Shutdown 时刷新未导出的 span
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   *Config
}

var defaultTracer *Tracer

// Init 按配置创建导出器并注册为全局追踪器
// 未启用时返回空追踪器，Start 得到空操作 span
func Init(cfg *Config) (*Tracer, error) {
	cfg = withDefaults(cfg)
	if !cfg.Enabled {
		defaultTracer = &Tracer{config: cfg}
		return defaultTracer, nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, err
	}
	return setup(cfg, sdktrace.NewBatchSpanProcessor(exporter))
}

func withDefaults(cfg *Config) *Config {
	if cfg == nil {
		return &Config{
			ServiceName: "affiliate-backend",
			Environment: "development",
			SampleRate:  1.0,
			Enabled:     true,
		}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "affiliate-backend"
	}
	return cfg
}

func newExporter(cfg *Config) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("创建 stdout 导出器失败: %w", err)
		}
		return exporter, nil
	}

	client := otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	exporter, err := otlptrace.New(context.Background(), client)
	if err != nil {
		return nil, fmt.Errorf("创建 OTLP 导出器失败: %w", err)
	}
	return exporter, nil
}

func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// setup 用给定的 span 处理器构建 TracerProvider 并设置全局传播器
func setup(cfg *Config, processor sdktrace.SpanProcessor) (*Tracer, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("创建资源失败: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	defaultTracer = &Tracer{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
		config:   cfg,
	}
	return defaultTracer, nil
}

// Shutdown 刷新并关闭追踪器
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Start 使用默认追踪器开始 span，未初始化时返回空操作 span
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	t := defaultTracer
	if t == nil || t.tracer == nil {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End 记录错误（如有）并结束 span
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// AddEvent 在当前 span 上记录事件
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// 业务属性键
var (
	AttrUserID      = attribute.Key("user.id")
	AttrAffiliateID = attribute.Key("affiliate.id")
	AttrOrderID     = attribute.Key("order.id")
	AttrPaymentID   = attribute.Key("payment.id")
	AttrWithdrawal  = attribute.Key("withdrawal.id")
	AttrOperation   = attribute.Key("operation")
	AttrResult      = attribute.Key("result")
)

func WithUserID(id int64) attribute.KeyValue { return AttrUserID.Int64(id) }

func WithAffiliateID(id int64) attribute.KeyValue { return AttrAffiliateID.Int64(id) }

func WithOrderID(id int64) attribute.KeyValue { return AttrOrderID.Int64(id) }

func WithPaymentID(id string) attribute.KeyValue { return AttrPaymentID.String(id) }

func WithWithdrawalID(id int64) attribute.KeyValue { return AttrWithdrawal.Int64(id) }

func WithOperation(op string) attribute.KeyValue { return AttrOperation.String(op) }

// WithResult 支付通知等流程的处理结果
func WithResult(result string) attribute.KeyValue { return AttrResult.String(result) }
