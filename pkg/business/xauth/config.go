package xauth

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/omeyang/xredis/pkg/config/xconf"
)

// =============================================================================
// 默认值
// =============================================================================

const (
	// DefaultTimeout 默认请求超时时间。
	DefaultTimeout = 15 * time.Second

	// DefaultAuthPath 认证服务换取配置中心凭据的路径。
	DefaultAuthPath = "/api/v1/config/credentials"

	// DefaultTopologyPath 配置中心中 Redis 拓扑的路径。
	DefaultTopologyPath = "/api/v1/config/redis"
)

// Config 定义认证源配置。
type Config struct {
	// Host 认证服务地址（必填）。
	// 必须使用 https:// 前缀，除非显式设置 AllowInsecure = true。
	Host string `koanf:"host"`

	// AllowInsecure 允许 http:// 非加密连接，仅用于开发/测试环境。
	AllowInsecure bool `koanf:"allowInsecure"`

	// ClientID 与 ClientSecret 是调用方的凭据（必填）。
	ClientID     string `koanf:"clientId"`
	ClientSecret string `koanf:"clientSecret"`

	// AuthPath 默认 DefaultAuthPath。
	AuthPath string `koanf:"authPath"`

	// TopologyPath 拼接在配置中心地址之后。默认 DefaultTopologyPath。
	TopologyPath string `koanf:"topologyPath"`

	// Timeout 请求超时时间。默认 15 秒。
	Timeout time.Duration `koanf:"timeout"`

	// TLS 为 nil 时使用默认配置（启用证书验证）。
	TLS *TLSConfig `koanf:"tls"`
}

// TLSConfig TLS 配置。
type TLSConfig struct {
	// InsecureSkipVerify 是否跳过证书验证。
	// 仅用于开发/测试环境，生产环境请勿启用。
	InsecureSkipVerify bool `koanf:"insecureSkipVerify"`

	// RootCAFile CA 证书文件路径。
	RootCAFile string `koanf:"rootCAFile"`

	// CertFile 客户端证书文件路径。
	CertFile string `koanf:"certFile"`

	// KeyFile 客户端密钥文件路径。
	KeyFile string `koanf:"keyFile"`
}

// Validate 验证配置有效性。
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := c.validateHost(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if strings.TrimSpace(c.ClientID) == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// validateHost 校验 Host 格式和协议安全性。
func (c *Config) validateHost() error {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return ErrMissingHost
	}
	u, err := url.Parse(host)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidHost
	}
	if !c.AllowInsecure && u.Scheme != "https" {
		return ErrInsecureHost
	}
	return nil
}

// ApplyDefaults 应用默认值。
func (c *Config) ApplyDefaults() {
	c.Host = strings.TrimRight(strings.TrimSpace(c.Host), "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.AuthPath == "" {
		c.AuthPath = DefaultAuthPath
	}
	if c.TopologyPath == "" {
		c.TopologyPath = DefaultTopologyPath
	}
}

// Clone 创建配置的深拷贝。
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.TLS != nil {
		tlsCopy := *c.TLS
		clone.TLS = &tlsCopy
	}
	return &clone
}

// BuildTLSConfig 构建 TLS 配置。
func (c *TLSConfig) BuildTLSConfig() (*tls.Config, error) {
	if c == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	}

	//nolint:gosec // G402: InsecureSkipVerify 由用户配置控制
	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if c.RootCAFile != "" {
		caCert, err := os.ReadFile(c.RootCAFile)
		if err != nil {
			return nil, fmt.Errorf("xauth: failed to read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("xauth: failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("xauth: failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// LoadConfig 从 xconf 的 path 节点读取配置。Timeout 支持 "15s" 形式。
func LoadConfig(cfg xconf.Config, path string) (*Config, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	var c Config
	if err := cfg.Unmarshal(path, &c); err != nil {
		return nil, fmt.Errorf("xauth: load config: %w", err)
	}
	return &c, nil
}
