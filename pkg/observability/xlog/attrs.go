package xlog

import (
	"log/slog"
	"time"
)

// 标准字段名。
const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyComponent = "component"
	KeyOperation = "operation"
	KeyTarget    = "target"
	KeyTopology  = "topology"
	KeyLock      = "lock"
	KeyTenantID  = "tenant_id"
	KeyServiceID = "service_id"
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
)

// Err 创建错误属性。err 为 nil 时返回空属性，会被 slog 忽略。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性。
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性。
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性。
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Target 创建连接目标属性。传入值应为不含密码的目标 Key。
func Target(key string) slog.Attr {
	return slog.String(KeyTarget, key)
}

// Topology 创建拓扑属性。
func Topology(name string) slog.Attr {
	return slog.String(KeyTopology, name)
}

// Lock 创建锁名属性。
func Lock(name string) slog.Attr {
	return slog.String(KeyLock, name)
}
