// Package xlog 提供基于 log/slog 的日志构建器、标准属性和 context 信息注入。
//
// 各存储包通过 WithLogger(*slog.Logger) 接收日志记录器，默认 slog.Default()。
// 使用 xlog 构建的记录器会自动从 context 中提取租户键和 OpenTelemetry 追踪 ID：
//
//	logger, level, err := xlog.New().
//	    SetFormat("json").
//	    SetLevelString(cfg.String("log.level")).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	level.Set(slog.LevelDebug) // 运行时调整级别
//
//	client, err := xredis.New(target, xredis.WithLogger(logger))
//
// 只有 *Context 系列方法（InfoContext 等）会触发注入。
package xlog
