package xregistry

import (
	"context"
	"fmt"

	"github.com/omeyang/xredis/pkg/config/xconf"
	"github.com/omeyang/xredis/pkg/context/xtenant"
	"github.com/omeyang/xredis/pkg/storage/xredis"
)

// TenantsSection 是本地配置中按租户覆盖的节点。
//
//	host: 10.0.0.1:6379
//	password: default
//	tenants:
//	  t1:
//	    orders:
//	      host: 10.0.0.2:7000;10.0.0.3:7000
//	      password: s1
const TenantsSection = "tenants"

// LocalSource 从本地配置解析连接目标。
// 依次查找含 host 或 sentinel.master 的 tenants.<tenant>.<service> 与 tenants.<tenant>，
// 都没有时使用根节点。
type LocalSource struct {
	cfg       xconf.Config
	anonymous bool
}

// NewLocalSource 创建要求 password 的本地源，缺少 password 返回 xredis.ErrMissingPassword。
func NewLocalSource(cfg xconf.Config) *LocalSource {
	return &LocalSource{cfg: cfg}
}

// NewAnonymousLocalSource 创建允许缺少 password 的本地源，缺少时不做认证。
func NewAnonymousLocalSource(cfg xconf.Config) *LocalSource {
	return &LocalSource{cfg: cfg, anonymous: true}
}

// Resolve 实现 Source。
func (s *LocalSource) Resolve(_ context.Context, key xtenant.TenantKey) (xredis.Target, error) {
	if s.cfg == nil {
		return xredis.Target{}, fmt.Errorf("%w: nil config", xredis.ErrInvalidTarget)
	}
	section := s.section(key)
	if s.anonymous {
		return xredis.AnonymousTargetFromConfig(section)
	}
	return xredis.TargetFromConfig(section)
}

func (s *LocalSource) section(key xtenant.TenantKey) xconf.Config {
	for _, path := range []string{
		TenantsSection + "." + key.TenantID + "." + key.ServiceID,
		TenantsSection + "." + key.TenantID,
	} {
		if s.cfg.Exists(path+"."+xredis.KeyHost) || s.cfg.Exists(path+"."+xredis.KeySentinelMaster) {
			return s.cfg.Cut(path)
		}
	}
	return s.cfg
}
