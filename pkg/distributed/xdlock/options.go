package xdlock

import (
	"log/slog"
	"strings"
	"time"

	"github.com/omeyang/xredis/pkg/observability/xmetrics"
)

// maxNameLength 锁名最大长度（字节）。
const maxNameLength = 512

// 默认参数。
const (
	DefaultKeyPrefix      = "lock:"
	DefaultPollInterval   = 10 * time.Millisecond
	DefaultReleaseRetries = 16
	DefaultAcquireTimeout = 10 * time.Second
	DefaultLockTimeout    = 30 * time.Second
)

// validateName 验证锁名是否有效。
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// =============================================================================
// Manager 选项
// =============================================================================

// ManagerOption 定义 Manager 的配置选项。
type ManagerOption func(*managerOptions)

type managerOptions struct {
	keyPrefix         string
	pollInterval      time.Duration
	pollUntilDeadline bool
	releaseRetries    uint
	logger            *slog.Logger
	observer          xmetrics.Observer
}

func defaultManagerOptions() *managerOptions {
	return &managerOptions{
		keyPrefix:      DefaultKeyPrefix,
		pollInterval:   DefaultPollInterval,
		releaseRetries: DefaultReleaseRetries,
		logger:         slog.Default(),
		observer:       xmetrics.NoopObserver{},
	}
}

// WithKeyPrefix 设置锁键前缀，最终键 = prefix + name。
// 默认值："lock:"。
func WithKeyPrefix(prefix string) ManagerOption {
	return func(o *managerOptions) {
		o.keyPrefix = prefix
	}
}

// WithPollInterval 设置 Acquire 轮询间隔。默认 10ms。
func WithPollInterval(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithPollUntilDeadline 让 Acquire 在 SETNX 成功后继续轮询直到获取超时，
// 每轮重新设置过期时间，返回最后一次记录的令牌。
// Acquire 的耗时因此总是约等于 acquireTimeout，仅用于兼容依赖该时序的调用方。
func WithPollUntilDeadline() ManagerOption {
	return func(o *managerOptions) {
		o.pollUntilDeadline = true
	}
}

// WithReleaseRetries 设置 Release 遇到 EXEC 冲突时的最大尝试次数。默认 16。
func WithReleaseRetries(n uint) ManagerOption {
	return func(o *managerOptions) {
		if n > 0 {
			o.releaseRetries = n
		}
	}
}

// WithLogger 设置日志记录器，nil 被忽略。
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置统一观测接口，nil 被忽略。
func WithObserver(observer xmetrics.Observer) ManagerOption {
	return func(o *managerOptions) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// =============================================================================
// Lock 选项
// =============================================================================

// LockOption 定义 Manager.Lock 的配置选项。
type LockOption func(*lockOptions)

type lockOptions struct {
	acquireTimeout time.Duration
	lockTimeout    time.Duration
}

func defaultLockOptions() *lockOptions {
	return &lockOptions{
		acquireTimeout: DefaultAcquireTimeout,
		lockTimeout:    DefaultLockTimeout,
	}
}

// WithAcquireTimeout 设置获取锁的最长等待时间。默认 10s。
func WithAcquireTimeout(d time.Duration) LockOption {
	return func(o *lockOptions) {
		if d > 0 {
			o.acquireTimeout = d
		}
	}
}

// WithLockTimeout 设置锁的过期时间。默认 30s。
// 过期时间按秒取整，不足 1s 按 1s 处理。
func WithLockTimeout(d time.Duration) LockOption {
	return func(o *lockOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// =============================================================================
// Redlock Mutex 选项
// =============================================================================

// MutexOption 定义 Redlock 锁实例的配置选项。
type MutexOption func(*mutexOptions)

type mutexOptions struct {
	KeyPrefix      string
	Expiry         time.Duration // 默认 8s
	Tries          int           // 默认 32
	RetryDelay     time.Duration // 默认 200ms
	RetryDelayFunc func(tries int) time.Duration
	DriftFactor    float64 // 默认 0.01
	TimeoutFactor  float64 // 默认 0.05
	GenValueFunc   func() (string, error)
	FailFast       bool
	ShufflePools   bool
	SetNXOnExtend  bool
}

func defaultMutexOptions() *mutexOptions {
	return &mutexOptions{
		KeyPrefix:     DefaultKeyPrefix,
		Expiry:        8 * time.Second,
		Tries:         32,
		RetryDelay:    200 * time.Millisecond,
		DriftFactor:   0.01,
		TimeoutFactor: 0.05,
	}
}

// WithMutexKeyPrefix 设置 Redlock 键前缀。默认 "lock:"。
func WithMutexKeyPrefix(prefix string) MutexOption {
	return func(o *mutexOptions) {
		o.KeyPrefix = prefix
	}
}

// WithExpiry 设置锁的过期时间。默认 8s。
// 过期时间应大于业务执行时间，否则需要调用 Extend 续期。
func WithExpiry(d time.Duration) MutexOption {
	return func(o *mutexOptions) {
		if d > 0 {
			o.Expiry = d
		}
	}
}

// WithTries 设置获取锁的最大尝试次数。默认 32，设置为 1 表示不重试。
func WithTries(n int) MutexOption {
	return func(o *mutexOptions) {
		if n > 0 {
			o.Tries = n
		}
	}
}

// WithRetryDelay 设置重试延迟。默认 200ms。
func WithRetryDelay(d time.Duration) MutexOption {
	return func(o *mutexOptions) {
		if d > 0 {
			o.RetryDelay = d
		}
	}
}

// WithRetryDelayFunc 设置自定义重试延迟函数，tries 从 1 开始。
//
//	xdlock.WithRetryDelayFunc(func(tries int) time.Duration {
//	    return time.Duration(tries) * 100 * time.Millisecond
//	})
func WithRetryDelayFunc(fn func(tries int) time.Duration) MutexOption {
	return func(o *mutexOptions) {
		if fn != nil {
			o.RetryDelayFunc = fn
		}
	}
}

// WithDriftFactor 设置时钟漂移因子。默认 0.01，值必须 > 0。
func WithDriftFactor(f float64) MutexOption {
	return func(o *mutexOptions) {
		if f > 0 {
			o.DriftFactor = f
		}
	}
}

// WithTimeoutFactor 设置单节点超时因子。默认 0.05，值必须 > 0。
func WithTimeoutFactor(f float64) MutexOption {
	return func(o *mutexOptions) {
		if f > 0 {
			o.TimeoutFactor = f
		}
	}
}

// WithGenValueFunc 设置自定义锁值生成函数。生成的值必须全局唯一。
func WithGenValueFunc(fn func() (string, error)) MutexOption {
	return func(o *mutexOptions) {
		if fn != nil {
			o.GenValueFunc = fn
		}
	}
}

// WithFailFast 任意节点失败时立即返回。
func WithFailFast(b bool) MutexOption {
	return func(o *mutexOptions) {
		o.FailFast = b
	}
}

// WithShufflePools 每次获取锁时随机打乱节点顺序。
func WithShufflePools(b bool) MutexOption {
	return func(o *mutexOptions) {
		o.ShufflePools = b
	}
}

// WithSetNXOnExtend 锁已过期时 Extend 尝试重新获取。
func WithSetNXOnExtend(b bool) MutexOption {
	return func(o *mutexOptions) {
		o.SetNXOnExtend = b
	}
}
