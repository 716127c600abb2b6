package xdlock

import "errors"

// 预定义错误。
// 使用 errors.Is 进行错误匹配，例如：
//
//	if errors.Is(err, xdlock.ErrLockTimeout) {
//	    // 锁被占用
//	}
var (
	// ErrLockTimeout 在获取超时内未能获取锁。
	ErrLockTimeout = errors.New("xdlock: lock acquire timed out")

	// ErrLockNotOwned 锁已过期或被其他持有者获取。
	// Unlock/Extend 发现令牌不匹配时返回。
	ErrLockNotOwned = errors.New("xdlock: lock not owned")

	// ErrLockHeld 锁被其他持有者占用（Redlock TryLock 内部使用）。
	ErrLockHeld = errors.New("xdlock: lock is held by another owner")

	// ErrLockFailed Redlock 重试耗尽仍未获取到锁。
	ErrLockFailed = errors.New("xdlock: failed to acquire lock")

	// ErrExtendFailed Redlock 续期失败，锁可能仍在。
	ErrExtendFailed = errors.New("xdlock: failed to extend lock")

	// ErrNilClient 客户端为空。
	ErrNilClient = errors.New("xdlock: client is nil")

	// ErrNilContext context 为空。
	ErrNilContext = errors.New("xdlock: nil context")

	// ErrFactoryClosed 工厂已关闭。
	ErrFactoryClosed = errors.New("xdlock: factory is closed")

	// ErrEmptyName 锁名为空或仅含空白。
	ErrEmptyName = errors.New("xdlock: lock name must not be empty")

	// ErrNameTooLong 锁名超过 maxNameLength（512 字节）。
	ErrNameTooLong = errors.New("xdlock: lock name exceeds maximum length of 512 bytes")
)
