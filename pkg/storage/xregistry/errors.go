package xregistry

import "errors"

var (
	// ErrResolve 表示解析连接目标或构建客户端失败。
	ErrResolve = errors.New("xregistry: resolve failed")

	// ErrRegistryClosed 表示注册表已关闭。
	ErrRegistryClosed = errors.New("xregistry: registry closed")

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xregistry: nil context")

	// ErrNoSource 表示注册表未配置 Source，只能按原始目标解析。
	ErrNoSource = errors.New("xregistry: no source configured")
)
