package xdlock

import (
	"context"
	"time"

	"github.com/omeyang/xredis/internal/storageopt"
)

// cleanupTimeout 是 ctx 已取消时解锁使用的独立超时。
const cleanupTimeout = 5 * time.Second

// LockHandle 表示一次成功的锁获取。
//
// 每次 Lock/TryLock 成功都会返回一个新的 handle，内部封装了唯一令牌。
// 通过 handle 进行 Unlock 和 Extend，不同获取之间不会互相干扰。
//
//	handle, err := manager.Lock(ctx, "my-resource")
//	if err != nil {
//	    return err
//	}
//	defer handle.Unlock(ctx)
type LockHandle interface {
	// Unlock 释放锁，只释放本次获取的锁。
	// 返回 [ErrLockNotOwned] 表示锁已过期或被其他持有者获取。
	// ctx 已取消时使用独立清理上下文（5 秒超时）尽力完成解锁。
	Unlock(ctx context.Context) error

	// Extend 把锁的过期时间重置为获取时配置的时长。
	// 返回 [ErrLockNotOwned] 表示所有权已丢失。
	Extend(ctx context.Context) error

	// Key 返回锁的完整键（含前缀）。
	Key() string
}

// RedlockFactory 是基于 redsync 的 Redlock 工厂。
type RedlockFactory interface {
	// TryLock 非阻塞式获取锁。锁被占用时返回 (nil, nil)。
	TryLock(ctx context.Context, name string, opts ...MutexOption) (LockHandle, error)

	// Lock 按配置的重试策略阻塞获取锁。
	// 重试耗尽返回 ErrLockFailed；ctx 取消或超时返回 ctx 的错误。
	Lock(ctx context.Context, name string, opts ...MutexOption) (LockHandle, error)

	// Health 对所有节点执行 PING。
	Health(ctx context.Context) error

	// Close 关闭工厂。不关闭传入的客户端，客户端的生命周期由调用者管理。
	Close() error
}

// detachedContext 在 ctx 已取消时返回独立的清理上下文。
func detachedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return storageopt.Detached(ctx, cleanupTimeout)
}
