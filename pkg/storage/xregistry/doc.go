// Package xregistry 按解析键管理 xredis 客户端单例。
//
// 解析键有两种：租户键（xtenant.TenantKey，经 [Source] 解析为连接目标）
// 和原始目标字符串（xredis.ParseTarget 的语法）。
// 同一解析键最多存在一个客户端，并发首次访问只构建一次。
// 解析到同一后端（目标 Key、凭据、连接池参数都相同）的不同解析键共享同一个客户端。
//
// Registry 是显式的值而不是包级单例，测试可以各自创建：
//
//	reg, err := xregistry.New(xregistry.NewLocalSource(cfg))
//	if err != nil {
//	    return err
//	}
//	defer reg.Close()
//
//	client, err := reg.Resolve(ctx, xtenant.TenantKey{TenantID: "t1", ServiceID: "orders"})
//
// 解析失败返回 [ErrResolve]，不重试，也不缓存失败结果。
// Close 关闭全部客户端，之后的解析返回 [ErrRegistryClosed]。
package xregistry
