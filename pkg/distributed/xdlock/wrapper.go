package xdlock

import "github.com/go-redsync/redsync/v4"

// Mutex 是 redsync.Mutex 的类型别名，供需要直接访问 Redlock 实例的调用方断言使用。
type Mutex = *redsync.Mutex

// RedlockMutex 返回 Redlock 句柄的底层实例；h 不是 Redlock 句柄时返回 nil。
func RedlockMutex(h LockHandle) Mutex {
	if rh, ok := h.(*redlockHandle); ok {
		return rh.mutex
	}
	return nil
}
