// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xredis: 拓扑无关的 Redis 客户端，连接失败时重建一次、探活、重放一次
//   - xregistry: 按租户或目标复用 xredis 客户端的注册表
package storage
