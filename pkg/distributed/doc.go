// Package distributed 提供分布式协调相关的子包。
//
// 子包列表：
//   - xdlock: 基于 xredis 调用器的分布式锁，另提供 redsync 实现的 Redlock 工厂
package distributed
