package storageopt

import (
	"context"
	"time"
)

// DefaultProbeTimeout 是单次 PING 的默认上限。
const DefaultProbeTimeout = 5 * time.Second

// Bounded 为 ctx 加上超时。nil ctx 视为 context.Background()，timeout <= 0 不加超时。
func Bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Detached 返回保留 ctx 中的值、但不随 ctx 取消的 context，并加上超时。
// 用于多个调用方共享的工作（例如一次解析），或调用方已放弃后的清理。
func Detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return Bounded(context.WithoutCancel(ctx), timeout)
}
