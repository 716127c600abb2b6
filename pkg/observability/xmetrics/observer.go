package xmetrics

import (
	"context"
	"strconv"
)

// Kind 区分跨度类型。
type Kind uint8

const (
	// KindInternal 进程内操作：重建、解析、加锁。
	KindInternal Kind = iota
	// KindClient 发往 Redis 或配置服务的调用。
	KindClient
)

var kindNames = [...]string{KindInternal: "internal", KindClient: "client"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Status 是跨度结束时的结果分类。
type Status string

const (
	StatusOK Status = "ok"
	// StatusMiss 键不存在。命令本身成功，不计为错误。
	StatusMiss  Status = "miss"
	StatusError Status = "error"
)

// Attr 是一个观测属性。
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 描述要开始的跨度。
type SpanOptions struct {
	Component string // "xredis"、"xdlock"、"xregistry"、"xauth"
	Operation string // 命令名或操作名
	Kind      Kind
	Attrs     []Attr
}

// Result 是跨度的结束状态。
type Result struct {
	// Status 为空时由 Err 推导。
	Status Status
	Err    error
	// Rebuilt 表示本次调用触发了连接重建并重放。
	Rebuilt bool
	Attrs   []Attr
}

func (r Result) status() Status {
	switch {
	case r.Status != "":
		return r.Status
	case r.Err != nil:
		return StatusError
	default:
		return StatusOK
	}
}

// Span 是进行中的一次观测。
type Span interface {
	End(result Result)
}

// Observer 创建跨度。实现必须并发安全。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 不记录任何内容。
type NoopObserver struct{}

func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 不记录任何内容。
type NoopSpan struct{}

func (NoopSpan) End(Result) {}

// Start 通过 observer 开始跨度，返回值总是非 nil。
// observer 为 nil 或返回 nil 时退化为 NoopSpan 和传入的 ctx。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	next, span := observer.Start(ctx, opts)
	if next == nil {
		next = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return next, span
}
