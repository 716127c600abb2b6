// Package xauth 是认证/配置服务的客户端，把租户凭据解析为 Redis 连接目标。
//
// # 解析流程
//
//  1. 以 (serviceId, tenantId, 客户端凭据) 调用认证服务，
//     得到配置中心地址、配置中心账号密码和解析后的用户 ID。
//  2. 以上一步的账号访问配置中心，读取拓扑 JSON：
//     {"hosts": "h1:6379;h2:6379", "password": "...", "passwordEncrypted": true}
//  3. 密码加密时交给 [Decrypter] 解密（默认 AES-GCM）。
//  4. hosts 按 xredis.ParseTarget 的规则解析：单个端点为 single，
//     ';' 分隔为 cluster，"sentinel://master@h1;h2" 为 sentinel。
//
// [HTTPSource] 不缓存也不重试，失败原样返回给调用方。
// 缓存与单例由 xregistry 负责。
//
// # 安全
//
// Host 默认必须使用 https://，开发环境可设置 Config.AllowInsecure。
// 响应体超过 1MB 直接拒绝，返回 [ErrResponseTooLarge]。
// 非 2xx 响应返回 [*APIError]，可用 errors.Is 匹配 [ErrUnauthorized] 等。
package xauth
