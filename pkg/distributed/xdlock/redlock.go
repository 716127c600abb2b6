package xdlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/go-redsync/redsync/v4"
	rsredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"

	"github.com/omeyang/xredis/pkg/storage/xredis"
)

// redlockFactory 实现 RedlockFactory。
type redlockFactory struct {
	clients []*xredis.Client
	closed  atomic.Bool
}

// NewRedlockFactory 创建 Redlock 工厂。
// 单个客户端为标准 Redis 锁；多个客户端使用 Redlock 算法（需过半成功）。
//
// redsync 的每条命令都从客户端当前一代的底层连接取连接，
// 客户端重建后已持有的锁仍可 Unlock 和 Extend。
func NewRedlockFactory(clients ...*xredis.Client) (RedlockFactory, error) {
	if len(clients) == 0 {
		return nil, ErrNilClient
	}
	for i, client := range clients {
		if client == nil {
			return nil, errors.Join(ErrNilClient, errors.New("client at index "+strconv.Itoa(i)+" is nil"))
		}
	}
	return &redlockFactory{clients: clients}, nil
}

func (f *redlockFactory) TryLock(ctx context.Context, name string, opts ...MutexOption) (LockHandle, error) {
	mutex, err := f.prepare(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	if err := mutex.TryLockContext(ctx); err != nil {
		err = wrapRedsyncError(err)
		if errors.Is(err, ErrLockHeld) {
			return nil, nil
		}
		return nil, err
	}
	return &redlockHandle{mutex: mutex}, nil
}

func (f *redlockFactory) Lock(ctx context.Context, name string, opts ...MutexOption) (LockHandle, error) {
	mutex, err := f.prepare(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	if err := mutex.LockContext(ctx); err != nil {
		// redsync 不传递 context 错误，需要单独检查
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// 最后一次尝试被占用时 redsync 返回 ErrTaken 而不是 ErrFailed
		err = wrapRedsyncError(err)
		if errors.Is(err, ErrLockHeld) {
			return nil, fmt.Errorf("%w: %w", ErrLockFailed, err)
		}
		return nil, err
	}
	return &redlockHandle{mutex: mutex}, nil
}

func (f *redlockFactory) prepare(ctx context.Context, name string, opts []MutexOption) (*redsync.Mutex, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	return f.createMutex(name, opts...), nil
}

// createMutex 创建 redsync.Mutex。
func (f *redlockFactory) createMutex(name string, opts ...MutexOption) *redsync.Mutex {
	o := defaultMutexOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	pools := make([]rsredis.Pool, len(f.clients))
	for i, c := range f.clients {
		pools[i] = livePool{client: c}
	}

	rsOpts := make([]redsync.Option, 0, 10)
	rsOpts = append(rsOpts,
		redsync.WithExpiry(o.Expiry),
		redsync.WithTries(o.Tries),
		redsync.WithRetryDelay(o.RetryDelay),
		redsync.WithDriftFactor(o.DriftFactor),
		redsync.WithTimeoutFactor(o.TimeoutFactor),
		redsync.WithFailFast(o.FailFast),
		redsync.WithShufflePools(o.ShufflePools),
	)
	if o.RetryDelayFunc != nil {
		rsOpts = append(rsOpts, redsync.WithRetryDelayFunc(redsync.DelayFunc(o.RetryDelayFunc)))
	}
	if o.GenValueFunc != nil {
		rsOpts = append(rsOpts, redsync.WithGenValueFunc(o.GenValueFunc))
	}
	if o.SetNXOnExtend {
		rsOpts = append(rsOpts, redsync.WithSetNXOnExtend())
	}
	return redsync.New(pools...).NewMutex(o.KeyPrefix+name, rsOpts...)
}

// livePool 在每次 Get 时读取客户端当前一代的底层连接。
type livePool struct {
	client *xredis.Client
}

func (p livePool) Get(ctx context.Context) (rsredis.Conn, error) {
	return goredis.NewPool(p.client.Universal()).Get(ctx)
}

// Health 对所有客户端执行 PING。
func (f *redlockFactory) Health(ctx context.Context) error {
	if f.closed.Load() {
		return ErrFactoryClosed
	}
	for _, c := range f.clients {
		if err := c.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (f *redlockFactory) Close() error {
	f.closed.Store(true)
	return nil
}

// redlockHandle 实现 LockHandle。
// 工厂关闭后仍允许 Unlock/Extend，避免锁悬挂到 TTL 过期。
type redlockHandle struct {
	mutex *redsync.Mutex
}

func (h *redlockHandle) Unlock(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	ctx, cancel := detachedContext(ctx)
	defer cancel()

	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return ErrLockNotOwned
		}
		return wrapRedsyncError(err)
	}
	if !ok {
		return ErrLockNotOwned
	}
	return nil
}

func (h *redlockHandle) Extend(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	ok, err := h.mutex.ExtendContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return ErrLockNotOwned
		}
		return wrapRedsyncError(err)
	}
	if !ok {
		return ErrLockNotOwned
	}
	return nil
}

func (h *redlockHandle) Key() string {
	return h.mutex.Name()
}

// wrapRedsyncError 将 redsync 错误转换为 xdlock 错误，保留原始错误链。
func wrapRedsyncError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var taken *redsync.ErrTaken
	if errors.As(err, &taken) {
		return fmt.Errorf("%w: %w", ErrLockHeld, err)
	}
	if errors.Is(err, redsync.ErrFailed) {
		return fmt.Errorf("%w: %w", ErrLockFailed, err)
	}
	if errors.Is(err, redsync.ErrExtendFailed) {
		return fmt.Errorf("%w: %w", ErrExtendFailed, err)
	}
	return err
}
