package xdlock

import (
	"context"
	"log/slog"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xredis/pkg/observability/xlog"
	"github.com/omeyang/xredis/pkg/observability/xmetrics"
	"github.com/omeyang/xredis/pkg/storage/xredis"
)

const componentName = "xdlock"

// Manager 只使用 xredis 调用器暴露的原语实现分布式锁，并发安全。
type Manager struct {
	client *xredis.Client
	opts   *managerOptions
	logger *slog.Logger
}

// NewManager 基于 xredis 客户端创建锁管理器。客户端的生命周期由调用者管理。
func NewManager(client *xredis.Client, opts ...ManagerOption) (*Manager, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := defaultManagerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Manager{
		client: client,
		opts:   o,
		logger: o.logger.With(xlog.Component(componentName)),
	}, nil
}

// Key 返回锁名对应的完整键。
func (m *Manager) Key(name string) string {
	return m.opts.keyPrefix + name
}

// Acquire 在 acquireTimeout 内尝试获取锁，成功返回令牌。
//
// 超时未获取到返回 ("", nil)。ctx 取消时立即停止轮询：
// 已记录令牌则返回该令牌，否则返回 ctx 的错误。
// lockTimeout 按秒取整，不足 1s 按 1s 处理。
func (m *Manager) Acquire(ctx context.Context, name string, acquireTimeout, lockTimeout time.Duration) (token string, err error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	if err := validateName(name); err != nil {
		return "", err
	}

	ctx, span := m.start(ctx, "acquire", name)
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Bool(xmetrics.AttrLockAcquired, token != "")}})
	}()

	key := m.Key(name)
	candidate := uuid.NewString()
	expiry := lockExpiry(lockTimeout)
	deadline := time.Now().Add(acquireTimeout)

	var held string
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return m.interrupted(ctx, held)
		}

		ok, err := m.client.SetNX(ctx, key, candidate, 0)
		if err != nil {
			return m.failed(ctx, name, held, err)
		}
		if !ok {
			// 断线重放的 SETNX：首次执行可能已写入本次令牌，只是回复丢失。
			if ok, err = m.owns(ctx, key, candidate); err != nil {
				return m.failed(ctx, name, held, err)
			}
		}
		if ok {
			if _, err := m.client.Expire(ctx, key, expiry); err != nil {
				return m.failed(ctx, name, held, err)
			}
			held = candidate
			if !m.opts.pollUntilDeadline {
				return held, nil
			}
		}

		// 上一个持有者在 SETNX 与 EXPIRE 之间崩溃时键没有过期时间，补设。
		ttl, err := m.client.TTL(ctx, key)
		if err != nil {
			return m.failed(ctx, name, held, err)
		}
		if ttl == xredis.TTLNoExpiry {
			if _, err := m.client.Expire(ctx, key, expiry); err != nil {
				return m.failed(ctx, name, held, err)
			}
			m.logger.Debug("xdlock: restored missing expiry", xlog.Lock(name))
		}

		if !sleepCtx(ctx, min(m.opts.pollInterval, time.Until(deadline))) {
			return m.interrupted(ctx, held)
		}
	}
	return held, nil
}

// owns 报告键当前是否保存着 token。
func (m *Manager) owns(ctx context.Context, key, token string) (bool, error) {
	value, found, err := m.client.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return found && value == token, nil
}

func (m *Manager) interrupted(ctx context.Context, held string) (string, error) {
	if held != "" {
		return held, nil
	}
	return "", ctx.Err()
}

// failed 处理轮询中的命令错误。已持有锁时锁仍然有效，记录日志后返回令牌。
func (m *Manager) failed(ctx context.Context, name, held string, err error) (string, error) {
	if ctx.Err() != nil {
		return m.interrupted(ctx, held)
	}
	if held != "" {
		m.logger.Warn("xdlock: polling stopped while holding lock",
			xlog.Lock(name), xlog.Err(err))
		return held, nil
	}
	return "", err
}

// Release 仅在锁仍由 token 持有时删除它，返回删除是否提交。
// 令牌不匹配或锁已过期返回 (false, nil)。
func (m *Manager) Release(ctx context.Context, name, token string) (released bool, err error) {
	if ctx == nil {
		return false, ErrNilContext
	}
	if err := validateName(name); err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}

	ctx, span := m.start(ctx, "release", name)
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Bool(xmetrics.AttrLockReleased, released)}})
	}()

	key := m.Key(name)
	if m.client.Topology() == xredis.TopologyCluster {
		return m.compareAndDel(ctx, key, token)
	}
	err = m.retryOnConflict(ctx, func() error {
		var err error
		released, err = m.watchAndDel(ctx, key, token)
		return err
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// Extend 仅在锁仍由 token 持有时把过期时间重置为 lockTimeout，返回是否成功。
func (m *Manager) Extend(ctx context.Context, name, token string, lockTimeout time.Duration) (extended bool, err error) {
	if ctx == nil {
		return false, ErrNilContext
	}
	if err := validateName(name); err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}

	ctx, span := m.start(ctx, "extend", name)
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	key := m.Key(name)
	expiry := lockExpiry(lockTimeout)
	if m.client.Topology() == xredis.TopologyCluster {
		return m.compareAndExpire(ctx, key, token, expiry)
	}
	err = m.retryOnConflict(ctx, func() error {
		var err error
		extended, err = m.watchAndExpire(ctx, key, token, expiry)
		return err
	})
	if err != nil {
		return false, err
	}
	return extended, nil
}

// Lock 获取锁并返回 LockHandle。超时未获取到返回 ErrLockTimeout。
func (m *Manager) Lock(ctx context.Context, name string, opts ...LockOption) (LockHandle, error) {
	o := defaultLockOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	token, err := m.Acquire(ctx, name, o.acquireTimeout, o.lockTimeout)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrLockTimeout
	}
	return &managedHandle{manager: m, name: name, token: token, lockTimeout: o.lockTimeout}, nil
}

// =============================================================================
// single / sentinel：WATCH + MULTI/EXEC
// =============================================================================

// retryOnConflict 在 EXEC 冲突时重新执行 fn，最多 releaseRetries 次。
func (m *Manager) retryOnConflict(ctx context.Context, fn func() error) error {
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(m.opts.releaseRetries),
		retry.RetryIf(xredis.IsTxConflict),
		retry.Delay(time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	).Do(fn)
}

func (m *Manager) watchAndDel(ctx context.Context, key, token string) (bool, error) {
	var deleted bool
	err := m.client.RunTransaction(ctx, func(ctx context.Context, tx *xredis.Tx) error {
		deleted = false
		owner, err := watchOwner(ctx, tx, key, token)
		if err != nil || !owner {
			return err
		}
		var del *redis.IntCmd
		if _, err := tx.Exec(ctx, func(pipe redis.Pipeliner) error {
			del = pipe.Del(ctx, key)
			return nil
		}); err != nil {
			return err
		}
		deleted = del.Val() == 1
		return nil
	})
	return deleted, err
}

func (m *Manager) watchAndExpire(ctx context.Context, key, token string, expiry time.Duration) (bool, error) {
	var extended bool
	err := m.client.RunTransaction(ctx, func(ctx context.Context, tx *xredis.Tx) error {
		extended = false
		owner, err := watchOwner(ctx, tx, key, token)
		if err != nil || !owner {
			return err
		}
		var exp *redis.BoolCmd
		if _, err := tx.Exec(ctx, func(pipe redis.Pipeliner) error {
			exp = pipe.Expire(ctx, key, expiry)
			return nil
		}); err != nil {
			return err
		}
		extended = exp.Val()
		return nil
	})
	return extended, err
}

// watchOwner 监视键并比较令牌。不是持有者时清除 WATCH。
func watchOwner(ctx context.Context, tx *xredis.Tx, key, token string) (bool, error) {
	if err := tx.Watch(ctx, key); err != nil {
		return false, err
	}
	value, found, err := tx.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found || value != token {
		return false, tx.Unwatch(ctx)
	}
	return true, nil
}

// =============================================================================
// cluster：比较后操作，两步之间不原子
// =============================================================================

func (m *Manager) compareAndDel(ctx context.Context, key, token string) (bool, error) {
	value, found, err := m.client.Get(ctx, key)
	if err != nil || !found || value != token {
		return false, err
	}
	n, err := m.client.Del(ctx, key)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (m *Manager) compareAndExpire(ctx context.Context, key, token string, expiry time.Duration) (bool, error) {
	value, found, err := m.client.Get(ctx, key)
	if err != nil || !found || value != token {
		return false, err
	}
	return m.client.Expire(ctx, key, expiry)
}

// =============================================================================
// 辅助
// =============================================================================

func (m *Manager) start(ctx context.Context, op, name string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, m.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: op,
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String(xmetrics.AttrLockName, name)},
	})
}

// lockExpiry 把锁超时按秒向下取整，最小 1s。EXPIRE 0 会立即删除键。
func lockExpiry(d time.Duration) time.Duration {
	return max(d.Truncate(time.Second), time.Second)
}

// sleepCtx 等待 d，ctx 先结束返回 false。
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// =============================================================================
// LockHandle
// =============================================================================

type managedHandle struct {
	manager     *Manager
	name        string
	token       string
	lockTimeout time.Duration
}

func (h *managedHandle) Unlock(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	ctx, cancel := detachedContext(ctx)
	defer cancel()

	ok, err := h.manager.Release(ctx, h.name, h.token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotOwned
	}
	return nil
}

func (h *managedHandle) Extend(ctx context.Context) error {
	ok, err := h.manager.Extend(ctx, h.name, h.token, h.lockTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotOwned
	}
	return nil
}

func (h *managedHandle) Key() string {
	return h.manager.Key(h.name)
}
