package xtenant

import "errors"

var (
	// ErrEmptyTenantID 租户 ID 为空。
	ErrEmptyTenantID = errors.New("xtenant: empty tenant_id")

	// ErrEmptyServiceID 服务 ID 为空。
	ErrEmptyServiceID = errors.New("xtenant: empty service_id")

	// ErrInvalidKey 租户 ID 或服务 ID 含有分隔符或控制字符。
	ErrInvalidKey = errors.New("xtenant: invalid tenant key")

	// ErrNilContext context 为空。
	ErrNilContext = errors.New("xtenant: nil context")

	// ErrMissingKey context 中没有 TenantKey。
	ErrMissingKey = errors.New("xtenant: missing tenant key in context")
)
