package xredis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xredis/internal/storageopt"
	"github.com/omeyang/xredis/pkg/observability/xmetrics"
)

// DefaultDrainTimeout 是重建后旧一代等待在途句柄归还的最长时间。
const DefaultDrainTimeout = 10 * time.Second

// SlowCommandInfo 慢命令信息。
type SlowCommandInfo struct {
	Command  string
	Topology Topology
	Duration time.Duration
}

// Option 定义客户端配置选项。
type Option func(*options)

type options struct {
	logger        *slog.Logger
	observer      xmetrics.Observer
	hooks         []redis.Hook
	healthTimeout time.Duration
	drainTimeout  time.Duration
	breaker       *gobreaker.Settings
	slowThreshold time.Duration
	slowHook      storageopt.SlowHook[SlowCommandInfo]
	checkOnBuild  bool
	buildCtx      context.Context
}

func defaultOptions() *options {
	return &options{
		logger:        slog.Default(),
		observer:      xmetrics.NoopObserver{},
		healthTimeout: storageopt.DefaultProbeTimeout,
		drainTimeout:  DefaultDrainTimeout,
		buildCtx:      context.Background(),
	}
}

// WithLogger 设置日志记录器，nil 被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置统一观测接口，nil 被忽略。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithHooks 为每一代底层客户端注册 go-redis 钩子。
// 重建后钩子会重新注册到新客户端上。
func WithHooks(hooks ...redis.Hook) Option {
	return func(o *options) {
		for _, h := range hooks {
			if h != nil {
				o.hooks = append(o.hooks, h)
			}
		}
	}
}

// WithHealthTimeout 设置探活超时，默认 5s。
func WithHealthTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.healthTimeout = timeout
		}
	}
}

// WithDrainTimeout 设置重建后旧一代的排空时间，默认 10s。
// 旧一代在最后一个在途句柄归还时关闭，超过 d 仍未归还则强制关闭，
// 此时仍在执行的命令以连接错误结束并按调用器的规则重放。d <= 0 表示立即关闭。
func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) {
		o.drainTimeout = d
	}
}

// WithRebuildBreaker 用熔断器保护"重建 + 探活"。
// 熔断打开期间连接类错误直接返回 ErrUnavailable，不再重建。
// Settings.Name 为空时使用目标 Key。
func WithRebuildBreaker(st gobreaker.Settings) Option {
	return func(o *options) {
		o.breaker = &st
	}
}

// WithSlowCommandThreshold 设置慢命令阈值和回调，threshold <= 0 禁用。
func WithSlowCommandThreshold(threshold time.Duration, hook func(ctx context.Context, info SlowCommandInfo)) Option {
	return func(o *options) {
		o.slowThreshold = threshold
		o.slowHook = hook
	}
}

// WithHealthCheck 设置构建后是否立即 PING。默认 false，与 go-redis 惰性拨号一致。
// ctx 控制首次 PING 的超时，nil 时使用 context.Background()。
func WithHealthCheck(ctx context.Context, enabled bool) Option {
	return func(o *options) {
		o.checkOnBuild = enabled
		if ctx != nil {
			o.buildCtx = ctx
		}
	}
}
