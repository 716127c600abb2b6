// Package xredis 提供与部署形态无关的 Redis 客户端门面。
//
// 同一套 API 覆盖三种拓扑：单节点（single）、哨兵托管主节点（sentinel）
// 和分片集群（cluster）。客户端由三层组成：
//
//   - 拓扑连接器（connector）：按拓扑构建 go-redis 底层对象，租借/归还句柄，
//     在连接断开后重建。并发重建通过互斥锁和代数计数折叠为一次物理重建。
//   - 探活器（prober）：通过句柄发送 PING，只返回可达与否，从不返回错误。
//   - 弹性调用器（invoke）：所有数据命令的唯一入口。连接类错误触发
//     "重建一次、探活、重放一次"，重放仍失败则返回 ErrUnavailable；
//     其余错误立即返回，不重试。
//
// # 句柄
//
// single/sentinel 拓扑的句柄是从连接池租借的粘性连接（*redis.Conn），
// 调用结束时无论成败都会归还。cluster 拓扑的句柄就是集群路由器本身，
// 归还是空操作。
//
// # 错误
//
// 所有失败都以 *Error 返回，可用 errors.Is 匹配 ErrConnection、ErrOperation、
// ErrCrossShard、ErrUnsupported、ErrUnavailable。redis.Nil 原样返回。
//
// # 集群限制
//
// cluster 拓扑下，键落在不同槽位的多键命令（SUNION/SDIFF/SDIFFSTORE 等）
// 返回 ErrCrossShard；需要同槽的键请使用 {hashtag}。事务（WATCH/MULTI/EXEC）
// 在 cluster 拓扑下返回 ErrUnsupported。
//
// # 使用示例
//
//	client, err := xredis.New(xredis.Target{
//		Topology: xredis.TopologySingle,
//		Addrs:    []string{"127.0.0.1:6379"},
//	}, xredis.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	val, found, err := client.Get(ctx, "user:1")
package xredis
