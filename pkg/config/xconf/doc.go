// Package xconf 基于 koanf 加载 Redis 连接配置。
//
// 配置来自 YAML/JSON 文件或字节数据，可选叠加环境变量。xredis 的本地目标解析
// 和 xregistry 的多租户配置都通过 Config 读取：
//
//	redis:
//	  host: 10.0.0.1:6379
//	  password: ""
//	  maxTotal: 64
//	tenants:
//	  t1:
//	    host: 10.0.1.1:7000;10.0.1.2:7000
//
// Exists 区分"键不存在"与"键为空字符串"。xredis 依赖这一点
// 区分必须提供密码和允许无密码两条路径。
//
// # 环境变量
//
// WithEnvPrefix("XREDIS_") 让 XREDIS_REDIS__PASSWORD 覆盖 redis.password：
// 去掉前缀后双下划线分隔层级，段名与文件中已有的键大小写不敏感匹配
// （XREDIS_REDIS__MAXTOTAL 对应 redis.maxTotal）。
//
// 所有方法并发安全。Reload 原子替换配置，Cut 返回的子配置是快照，不随 Reload 更新。
package xconf
