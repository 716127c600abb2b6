// Package xmetrics 是 xredis 各组件共用的观测接口。
//
// 组件只依赖 Observer 和 Span，默认 NoopObserver。
// OTelObserver 把每个跨度记为一个 OpenTelemetry span，并记录指标：
//
//   - xredis.operations：操作计数，按 component、operation、status 分组
//   - xredis.operation.duration：操作耗时（秒），包含重建与重放
//   - xredis.replays：重建后重放的操作计数
//
// status 取值 ok、miss、error。GET 未命中记为 miss，不算错误。
//
//	obs, err := xmetrics.NewOTelObserver()
//	if err != nil {
//	    return err
//	}
//	client, err := xredis.New(target, xredis.WithObserver(obs))
package xmetrics
