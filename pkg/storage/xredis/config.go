package xredis

import (
	"fmt"
	"time"

	"github.com/omeyang/xredis/pkg/config/xconf"
)

// 本地配置键。
const (
	KeyHost           = "host"
	KeyUsername       = "username"
	KeyPassword       = "password"
	KeyDB             = "db"
	KeyMaxTotal       = "maxTotal"
	KeyMaxIdle        = "maxIdle"
	KeyMinIdle        = "minIdle"
	KeyMaxWaitMillis  = "maxWaitMillis"
	KeyTimeoutMillis  = "timeoutMillis"
	KeyTestOnBorrow   = "testOnBorrow"
	KeySentinelMaster = "sentinel.master"
	KeySentinelNodes  = "sentinel.nodes"
)

// TargetFromConfig 从本地配置读取目标，password 必须存在。
// 缺少 password 返回 ErrMissingPassword。
//
//	host: 10.0.0.1:6379            # 单节点
//	host: 10.0.0.1:7000;10.0.0.2:7000  # ';' 分隔选择 cluster
//	password: secret
//	maxTotal: 64
//	testOnBorrow: true
func TargetFromConfig(cfg xconf.Config) (Target, error) {
	if cfg == nil {
		return Target{}, fmt.Errorf("%w: nil config", ErrInvalidTarget)
	}
	if !cfg.Exists(KeyPassword) {
		return Target{}, ErrMissingPassword
	}
	return targetFromConfig(cfg)
}

// AnonymousTargetFromConfig 从本地配置读取目标，缺少 password 时不做认证。
func AnonymousTargetFromConfig(cfg xconf.Config) (Target, error) {
	if cfg == nil {
		return Target{}, fmt.Errorf("%w: nil config", ErrInvalidTarget)
	}
	return targetFromConfig(cfg)
}

func targetFromConfig(cfg xconf.Config) (Target, error) {
	var t Target
	if master := cfg.String(KeySentinelMaster); master != "" {
		t.Topology = TopologySentinel
		t.MasterName = master
		t.Addrs = splitAddrs(cfg.String(KeySentinelNodes))
	} else {
		host := cfg.String(KeyHost)
		if host == "" {
			return Target{}, fmt.Errorf("%w: missing %q", ErrInvalidTarget, KeyHost)
		}
		parsed, err := ParseTarget(host)
		if err != nil {
			return Target{}, err
		}
		t = parsed
	}

	t.Username = cfg.String(KeyUsername)
	t.Password = cfg.String(KeyPassword)
	t.DB = cfg.Int(KeyDB)
	t.Pool = Pool{
		MaxTotal:     cfg.Int(KeyMaxTotal),
		MaxIdle:      cfg.Int(KeyMaxIdle),
		MinIdle:      cfg.Int(KeyMinIdle),
		MaxWait:      time.Duration(cfg.Int(KeyMaxWaitMillis)) * time.Millisecond,
		TestOnBorrow: cfg.Bool(KeyTestOnBorrow),
	}
	if ms := cfg.Int(KeyTimeoutMillis); ms > 0 {
		d := time.Duration(ms) * time.Millisecond
		t.DialTimeout, t.ReadTimeout, t.WriteTimeout = d, d, d
	}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}
