package xredis

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Topology 是后端部署形态。
type Topology string

// 支持的拓扑。
const (
	TopologySingle   Topology = "single"
	TopologySentinel Topology = "sentinel"
	TopologyCluster  Topology = "cluster"
)

// 连接池等待超时下限。配置值更低时抬升到下限。
const (
	MinSingleWait   = 15 * time.Second
	MinSentinelWait = 20 * time.Second
)

// 默认连接池参数。
const (
	DefaultMaxTotal = 64
	DefaultMaxIdle  = 16
)

// AddrDelimiter 是多端点字符串的分隔符，出现时选择 cluster 拓扑。
const AddrDelimiter = ";"

// Pool 是连接池调优参数。
type Pool struct {
	// MaxTotal 最大连接数，对应 go-redis PoolSize。默认 64。
	MaxTotal int `json:"maxTotal" koanf:"maxTotal"`
	// MaxIdle 最大空闲连接数。默认 16。
	MaxIdle int `json:"maxIdle" koanf:"maxIdle"`
	// MinIdle 最小空闲连接数。
	MinIdle int `json:"minIdle" koanf:"minIdle"`
	// MaxWait 租借连接的最长等待时间，对应 go-redis PoolTimeout。
	// single 不低于 15s，sentinel 不低于 20s。
	MaxWait time.Duration `json:"maxWait" koanf:"maxWait"`
	// TestOnBorrow 为 true 时每次租借句柄先 PING。
	TestOnBorrow bool `json:"testOnBorrow" koanf:"testOnBorrow"`
}

// Target 描述一个连接目标。构建客户端后不再修改。
type Target struct {
	Topology Topology `json:"topology" koanf:"topology"`
	// Addrs 为 host:port 列表。sentinel 拓扑下为哨兵地址，cluster 拓扑下为种子节点。
	Addrs []string `json:"addrs" koanf:"addrs"`
	// MasterName 是哨兵监控的主节点名，仅 sentinel 拓扑使用。
	MasterName string `json:"masterName" koanf:"masterName"`
	Username   string `json:"username" koanf:"username"`
	Password   string `json:"-" koanf:"password"`
	// SentinelPassword 哨兵自身的认证密码，可选。
	SentinelPassword string `json:"-" koanf:"sentinelPassword"`
	// DB 数据库编号，cluster 拓扑忽略。
	DB           int           `json:"db" koanf:"db"`
	DialTimeout  time.Duration `json:"dialTimeout" koanf:"dialTimeout"`
	ReadTimeout  time.Duration `json:"readTimeout" koanf:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" koanf:"writeTimeout"`
	Pool         Pool          `json:"pool" koanf:"pool"`
}

// Validate 检查目标是否可用于构建客户端。
func (t Target) Validate() error {
	switch t.Topology {
	case TopologySingle:
		if len(t.Addrs) != 1 {
			return fmt.Errorf("%w: single topology requires exactly one address, got %d", ErrInvalidTarget, len(t.Addrs))
		}
	case TopologySentinel:
		if len(t.Addrs) == 0 {
			return fmt.Errorf("%w: sentinel topology requires sentinel addresses", ErrInvalidTarget)
		}
		if strings.TrimSpace(t.MasterName) == "" {
			return fmt.Errorf("%w: sentinel topology requires master name", ErrInvalidTarget)
		}
	case TopologyCluster:
		if len(t.Addrs) == 0 {
			return fmt.Errorf("%w: cluster topology requires seed addresses", ErrInvalidTarget)
		}
	default:
		return fmt.Errorf("%w: unknown topology %q", ErrInvalidTarget, t.Topology)
	}

	var errs []error
	for _, addr := range t.Addrs {
		if err := validateAddr(addr); err != nil {
			errs = append(errs, err)
		}
	}
	if t.Pool.MaxTotal < 0 || t.Pool.MaxIdle < 0 || t.Pool.MinIdle < 0 || t.Pool.MaxWait < 0 {
		errs = append(errs, errors.New("pool settings must not be negative"))
	}
	if t.DB < 0 {
		errs = append(errs, errors.New("db must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, errors.Join(errs...))
	}
	return nil
}

func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("address %q: %w", addr, err)
	}
	if host == "" {
		return fmt.Errorf("address %q: empty host", addr)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("address %q: invalid port", addr)
	}
	return nil
}

// withDefaults 返回应用默认值和等待下限后的副本。
func (t Target) withDefaults() Target {
	t.Addrs = slices.Clone(t.Addrs)
	if t.Pool.MaxTotal == 0 {
		t.Pool.MaxTotal = DefaultMaxTotal
	}
	if t.Pool.MaxIdle == 0 {
		t.Pool.MaxIdle = min(DefaultMaxIdle, t.Pool.MaxTotal)
	}
	if t.Pool.MinIdle > t.Pool.MaxIdle {
		t.Pool.MinIdle = t.Pool.MaxIdle
	}
	switch t.Topology {
	case TopologySingle:
		t.Pool.MaxWait = max(t.Pool.MaxWait, MinSingleWait)
	case TopologySentinel:
		t.Pool.MaxWait = max(t.Pool.MaxWait, MinSentinelWait)
	}
	return t
}

// Key 返回目标的规范标识，不含密码。相同后端的目标得到相同 Key。
func (t Target) Key() string {
	addrs := slices.Clone(t.Addrs)
	slices.Sort(addrs)
	var b strings.Builder
	b.WriteString(string(t.Topology))
	b.WriteString("://")
	if t.Username != "" {
		b.WriteString(t.Username)
		b.WriteByte('@')
	}
	b.WriteString(strings.Join(addrs, ","))
	if t.Topology == TopologySentinel {
		b.WriteByte('/')
		b.WriteString(t.MasterName)
	}
	if t.Topology != TopologyCluster && t.DB != 0 {
		b.WriteString("?db=")
		b.WriteString(strconv.Itoa(t.DB))
	}
	return b.String()
}

// String 返回 Key，避免日志泄露密码。
func (t Target) String() string {
	return t.Key()
}

// ParseTarget 解析原始目标字符串。
//
// 支持的形式：
//   - "host:port" 单节点
//   - "host1:port1;host2:port2" 集群
//   - "sentinel://master@host1:port1;host2:port2" 哨兵
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("%w: empty target", ErrInvalidTarget)
	}

	if rest, ok := strings.CutPrefix(raw, "sentinel://"); ok {
		master, hosts, found := strings.Cut(rest, "@")
		if !found || master == "" {
			return Target{}, fmt.Errorf("%w: sentinel target requires master@hosts", ErrInvalidTarget)
		}
		t := Target{Topology: TopologySentinel, MasterName: master, Addrs: splitAddrs(hosts)}
		return t, t.Validate()
	}

	addrs := splitAddrs(raw)
	t := Target{Topology: TopologySingle, Addrs: addrs}
	if strings.Contains(raw, AddrDelimiter) {
		t.Topology = TopologyCluster
	}
	return t, t.Validate()
}

func splitAddrs(s string) []string {
	parts := strings.Split(s, AddrDelimiter)
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}
