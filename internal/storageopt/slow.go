package storageopt

import (
	"context"
	"sync/atomic"
	"time"
)

// SlowHook 在命令耗时达到阈值时同步调用，运行在命令返回路径上。
type SlowHook[T any] func(ctx context.Context, info T)

// SlowDetector 统计并回调慢命令。nil 或 threshold <= 0 时不做任何事。
type SlowDetector[T any] struct {
	threshold time.Duration
	hook      SlowHook[T]
	count     atomic.Int64
}

// NewSlowDetector 创建慢命令检测器。hook 可以为 nil，此时只计数。
func NewSlowDetector[T any](threshold time.Duration, hook SlowHook[T]) *SlowDetector[T] {
	return &SlowDetector[T]{threshold: threshold, hook: hook}
}

// Observe 在 elapsed >= threshold 时计数并回调，返回是否判定为慢命令。
func (d *SlowDetector[T]) Observe(ctx context.Context, elapsed time.Duration, info T) bool {
	if d == nil || d.threshold <= 0 || elapsed < d.threshold {
		return false
	}
	d.count.Add(1)
	if d.hook != nil {
		d.hook(ctx, info)
	}
	return true
}

// Count 返回累计慢命令数。
func (d *SlowDetector[T]) Count() int64 {
	if d == nil {
		return 0
	}
	return d.count.Load()
}
