// Package context 提供上下文相关的子包。
//
// 子包列表：
//   - xtenant: 租户键（租户 ID + 服务 ID），context 注入与 HTTP 透传
package context
