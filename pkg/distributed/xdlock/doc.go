// Package xdlock 提供基于 xredis 客户端的分布式锁。
//
// # 两种实现
//
//   - Manager：只使用 xredis 调用器暴露的原语（SETNX、EXPIRE、TTL、GET、
//     WATCH/MULTI/EXEC），随客户端一起享有断线重建重放语义
//   - RedlockFactory：基于 redsync 的 Redlock，适用于多主节点多数派加锁
//
// # 锁记录
//
// 键为 "lock:<name>"，值为随机令牌，带 TTL。只有写入该令牌的持有者能删除它，
// 所有权由值相等证明，而不是持有某个本地对象。
//
// # 获取与释放
//
// Acquire 在 acquireTimeout 内轮询 SETNX，成功后立即设置过期时间并返回令牌；
// 超时返回空令牌。若发现键没有过期时间（上一个持有者在 SETNX 与 EXPIRE 之间崩溃），
// 补设过期时间。
//
// Release 以 WATCH → GET → 比较 → MULTI DEL EXEC 的乐观并发方式删除，
// EXEC 冲突时重新开始整个序列。令牌不匹配返回 false。
//
// # 拓扑差异
//
//	| 拓扑 | Release |
//	|------|---------|
//	| single / sentinel | WATCH + MULTI/EXEC，比较与删除原子 |
//	| cluster | GET 比较后 DEL，两步之间存在窗口 |
//
// cluster 拓扑没有跨调用的连接上下文，无法使用事务；比较与删除之间锁可能过期并被他人获取，
// 此时会误删他人的锁。需要严格互斥时使用 single/sentinel 或 Redlock。
//
// # 便捷接口
//
//	handle, err := manager.Lock(ctx, "order:42", xdlock.WithLockTimeout(30*time.Second))
//	if errors.Is(err, xdlock.ErrLockTimeout) {
//	    return nil // 被其他实例持有
//	}
//	if err != nil {
//	    return err
//	}
//	defer handle.Unlock(ctx)
package xdlock
