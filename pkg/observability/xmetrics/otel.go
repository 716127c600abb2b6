package xmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultInstrumentationName 是 tracer 和 meter 的默认作用域名。
const DefaultInstrumentationName = "github.com/omeyang/xredis"

// 指标名。
const (
	MetricOperations = "xredis.operations"
	MetricDuration   = "xredis.operation.duration"
	MetricReplays    = "xredis.replays"
)

const (
	keyComponent = "component"
	keyOperation = "operation"
	keyStatus    = "status"
	keyDBSystem  = "db.system"
	unknownName  = "unknown"
)

// Option 配置 OTelObserver。
type Option func(*otelOptions)

type otelOptions struct {
	scope  string
	tracer trace.TracerProvider
	meter  metric.MeterProvider
}

// WithInstrumentationName 设置作用域名，空值被忽略。
func WithInstrumentationName(name string) Option {
	return func(o *otelOptions) {
		if name != "" {
			o.scope = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider，nil 使用 otel 全局默认。
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *otelOptions) {
		if tp != nil {
			o.tracer = tp
		}
	}
}

// WithMeterProvider 设置 MeterProvider，nil 使用 otel 全局默认。
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *otelOptions) {
		if mp != nil {
			o.meter = mp
		}
	}
}

// OTelObserver 把跨度同时记为 trace span 和三个指标：
// 操作计数、操作耗时（秒）、重建重放计数。
type OTelObserver struct {
	tracer     trace.Tracer
	operations metric.Int64Counter
	duration   metric.Float64Histogram
	replays    metric.Int64Counter
}

var _ Observer = (*OTelObserver)(nil)

// NewOTelObserver 创建 OTelObserver。
func NewOTelObserver(opts ...Option) (*OTelObserver, error) {
	o := &otelOptions{
		scope:  DefaultInstrumentationName,
		tracer: otel.GetTracerProvider(),
		meter:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	meter := o.meter.Meter(o.scope)
	operations, err := meter.Int64Counter(MetricOperations,
		metric.WithDescription("Redis facade operations by outcome"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: %s: %w", MetricOperations, err)
	}
	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Redis facade operation latency, including rebuild and replay"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: %s: %w", MetricDuration, err)
	}
	replays, err := meter.Int64Counter(MetricReplays,
		metric.WithDescription("operations replayed after a connection rebuild"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: %s: %w", MetricReplays, err)
	}

	return &OTelObserver{
		tracer:     o.tracer.Tracer(o.scope),
		operations: operations,
		duration:   duration,
		replays:    replays,
	}, nil
}

// Start 开始 trace span。KindClient 的 span 额外带 db.system=redis。
func (o *OTelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	component := nameOr(opts.Component)
	operation := nameOr(opts.Operation)

	attrs := make([]attribute.KeyValue, 0, 3+len(opts.Attrs))
	attrs = append(attrs,
		attribute.String(keyComponent, component),
		attribute.String(keyOperation, operation))
	kind := trace.SpanKindInternal
	if opts.Kind == KindClient {
		kind = trace.SpanKindClient
		attrs = append(attrs, attribute.String(keyDBSystem, "redis"))
	}
	attrs = appendOTel(attrs, opts.Attrs)

	ctx, span := o.tracer.Start(ctx, component+"."+operation,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...))
	return ctx, &otelSpan{
		observer:  o,
		span:      span,
		ctx:       ctx,
		component: component,
		operation: operation,
		start:     time.Now(),
	}
}

type otelSpan struct {
	observer  *OTelObserver
	span      trace.Span
	ctx       context.Context
	component string
	operation string
	start     time.Time
	once      sync.Once
}

// End 只生效一次。
func (s *otelSpan) End(result Result) {
	s.once.Do(func() { s.end(result) })
}

func (s *otelSpan) end(result Result) {
	elapsed := time.Since(s.start)
	status := result.status()

	if result.Err != nil && status == StatusError {
		s.span.RecordError(result.Err)
		s.span.SetStatus(codes.Error, result.Err.Error())
	} else if status == StatusError {
		s.span.SetStatus(codes.Error, "operation failed")
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.SetAttributes(attribute.String(keyStatus, string(status)))
	if result.Rebuilt {
		s.span.SetAttributes(attribute.Bool(AttrRebuilt, true))
	}
	if len(result.Attrs) > 0 {
		s.span.SetAttributes(appendOTel(nil, result.Attrs)...)
	}
	s.span.End()

	// 调用方的 ctx 此时可能已取消，指标照常记录。
	ctx := context.WithoutCancel(s.ctx)
	set := metric.WithAttributes(
		attribute.String(keyComponent, s.component),
		attribute.String(keyOperation, s.operation),
		attribute.String(keyStatus, string(status)))
	s.observer.operations.Add(ctx, 1, set)
	s.observer.duration.Record(ctx, elapsed.Seconds(), set)
	if result.Rebuilt {
		s.observer.replays.Add(ctx, 1, set)
	}
}

func nameOr(name string) string {
	if name == "" {
		return unknownName
	}
	return name
}

func appendOTel(dst []attribute.KeyValue, attrs []Attr) []attribute.KeyValue {
	for _, a := range attrs {
		if a.Key == "" || a.Value == nil {
			continue
		}
		dst = append(dst, toKeyValue(a))
	}
	return dst
}

func toKeyValue(a Attr) attribute.KeyValue {
	switch v := a.Value.(type) {
	case string:
		return attribute.String(a.Key, v)
	case bool:
		return attribute.Bool(a.Key, v)
	case int:
		return attribute.Int(a.Key, v)
	case int64:
		return attribute.Int64(a.Key, v)
	case uint64:
		return attribute.Int64(a.Key, int64(v)) //nolint:gosec // 代数/计数不会超过 int64
	case float64:
		return attribute.Float64(a.Key, v)
	case time.Duration:
		return attribute.Float64(a.Key, v.Seconds())
	case fmt.Stringer:
		return attribute.String(a.Key, v.String())
	default:
		return attribute.String(a.Key, fmt.Sprint(v))
	}
}
