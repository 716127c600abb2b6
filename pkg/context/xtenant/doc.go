// Package xtenant 定义租户解析键 TenantKey 及其在 context 和 HTTP 请求中的传播。
//
// TenantKey 由租户 ID 和服务 ID 组成，是客户端注册表按租户去重的解析键。
//
// HTTP Header 约定（遵循 X- 前缀）：
//   - X-Tenant-ID: 租户 ID（单值字段，多值时取第一个）
//   - X-Service-ID: 服务 ID
//
// 出站传播使用"以 context 为准"的语义：有值则 Set，无值则删除已有的键，
// 防止请求对象复用时旧租户信息泄漏到下游。
//
// 所有导出函数都是并发安全的。
package xtenant
