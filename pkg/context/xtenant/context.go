package xtenant

import "context"

type contextKey struct{}

// WithKey 将 TenantKey 注入 context。ctx 为 nil 返回 ErrNilContext。
func WithKey(ctx context.Context, key TenantKey) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, contextKey{}, key), nil
}

// FromContext 从 context 获取 TenantKey，未设置时 ok 为 false。
func FromContext(ctx context.Context) (key TenantKey, ok bool) {
	if ctx == nil {
		return TenantKey{}, false
	}
	key, ok = ctx.Value(contextKey{}).(TenantKey)
	return key, ok
}

// RequireKey 从 context 获取通过校验的 TenantKey。
func RequireKey(ctx context.Context) (TenantKey, error) {
	key, ok := FromContext(ctx)
	if !ok {
		return TenantKey{}, ErrMissingKey
	}
	if err := key.Validate(); err != nil {
		return TenantKey{}, err
	}
	return key, nil
}
