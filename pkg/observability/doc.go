// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: slog 记录器构建、标准字段、租户与追踪 ID 注入
//   - xmetrics: 统一观测接口，默认实现基于 OpenTelemetry
package observability
