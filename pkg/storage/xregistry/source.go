package xregistry

import (
	"context"

	"github.com/omeyang/xredis/pkg/business/xauth"
	"github.com/omeyang/xredis/pkg/context/xtenant"
	"github.com/omeyang/xredis/pkg/storage/xredis"
)

//go:generate mockgen -source=source.go -destination=mock_source_test.go -package=xregistry

// Source 把租户键解析为连接目标。实现必须并发安全。
type Source interface {
	Resolve(ctx context.Context, key xtenant.TenantKey) (xredis.Target, error)
}

// SourceFunc 将函数适配为 Source。
type SourceFunc func(ctx context.Context, key xtenant.TenantKey) (xredis.Target, error)

// Resolve 调用 f。
func (f SourceFunc) Resolve(ctx context.Context, key xtenant.TenantKey) (xredis.Target, error) {
	return f(ctx, key)
}

var _ Source = (*xauth.HTTPSource)(nil)
