package xauth

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/omeyang/xredis/pkg/context/xtenant"
	"github.com/omeyang/xredis/pkg/observability/xlog"
	"github.com/omeyang/xredis/pkg/observability/xmetrics"
	"github.com/omeyang/xredis/pkg/storage/xredis"
)

// Credentials 是认证服务返回的配置中心访问信息。
type Credentials struct {
	ConfigAddress  string `json:"configAddress"`
	ConfigUser     string `json:"configUser"`
	ConfigPassword string `json:"configPassword"`
	// UserID 是认证服务解析出的用户 ID，读取配置时回传。
	UserID string `json:"resolvedUserId"`
}

// Topology 是配置中心下发的 Redis 拓扑。
type Topology struct {
	// Hosts 语法同 xredis.ParseTarget。
	Hosts             string `json:"hosts"`
	Username          string `json:"username,omitempty"`
	Password          string `json:"password,omitempty"`
	PasswordEncrypted bool   `json:"passwordEncrypted,omitempty"`
	DB                int    `json:"db,omitempty"`
	MaxTotal          int    `json:"maxTotal,omitempty"`
	MaxIdle           int    `json:"maxIdle,omitempty"`
	MinIdle           int    `json:"minIdle,omitempty"`
	MaxWaitMillis     int64  `json:"maxWaitMillis,omitempty"`
	TestOnBorrow      bool   `json:"testOnBorrow,omitempty"`
}

type authRequest struct {
	ServiceID    string `json:"serviceId"`
	TenantID     string `json:"tenantId"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type authResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    Credentials `json:"data"`
}

// HTTPSource 通过认证服务和配置中心把 TenantKey 解析为 xredis.Target。
// 并发安全，不缓存结果。
type HTTPSource struct {
	config    *Config
	http      *HTTPClient
	decrypter Decrypter
	logger    *slog.Logger
	observer  xmetrics.Observer
}

// NewHTTPSource 创建 HTTPSource。cfg 会被复制，之后修改不影响 HTTPSource。
func NewHTTPSource(cfg *Config, opts ...Option) (*HTTPSource, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg = cfg.Clone()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("xauth: invalid config: %w", err)
	}

	options := applyOptions(opts)
	httpCfg := HTTPClientConfig{
		BaseURL:  cfg.Host,
		Timeout:  cfg.Timeout,
		Client:   options.HTTPClient,
		Observer: options.Observer,
	}
	if options.HTTPClient == nil {
		tlsConfig, err := cfg.TLS.BuildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("xauth: build tls config failed: %w", err)
		}
		httpCfg.TLSConfig = tlsConfig
	}

	return &HTTPSource{
		config:    cfg,
		http:      NewHTTPClient(httpCfg),
		decrypter: options.Decrypter,
		logger:    options.Logger.With(xlog.Component(MetricsComponent)),
		observer:  options.Observer,
	}, nil
}

// Resolve 解析 key 对应的连接目标。
func (s *HTTPSource) Resolve(ctx context.Context, key xtenant.TenantKey) (target xredis.Target, err error) {
	if ctx == nil {
		return xredis.Target{}, ErrNilContext
	}
	if err := key.Validate(); err != nil {
		return xredis.Target{}, err
	}
	ctx, err = xtenant.WithKey(ctx, key)
	if err != nil {
		return xredis.Target{}, err
	}

	ctx, span := s.start(ctx, MetricsOpResolve, key)
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	creds, err := s.Authenticate(ctx, key)
	if err != nil {
		return xredis.Target{}, err
	}
	topo, err := s.FetchTopology(ctx, key, creds)
	if err != nil {
		return xredis.Target{}, err
	}
	target, err = s.buildTarget(topo)
	if err != nil {
		return xredis.Target{}, err
	}

	s.logger.InfoContext(ctx, "xauth: target resolved",
		slog.String(MetricsAttrTenantID, key.TenantID),
		slog.String(MetricsAttrServiceID, key.ServiceID),
		xlog.Target(target.Key()))
	return target, nil
}

// Authenticate 以调用方凭据换取配置中心访问信息。
func (s *HTTPSource) Authenticate(ctx context.Context, key xtenant.TenantKey) (creds *Credentials, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx, span := s.start(ctx, MetricsOpAuthenticate, key)
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	req := authRequest{
		ServiceID:    key.ServiceID,
		TenantID:     key.TenantID,
		ClientID:     s.config.ClientID,
		ClientSecret: s.config.ClientSecret,
	}
	var resp authResponse
	if err := s.http.Post(ctx, s.config.AuthPath, nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, NewAPIError(200, resp.Code, resp.Message)
	}
	if strings.TrimSpace(resp.Data.ConfigAddress) == "" {
		return nil, fmt.Errorf("%w: missing configAddress", ErrResponseInvalid)
	}
	return &resp.Data, nil
}

// FetchTopology 从配置中心读取拓扑 JSON。
func (s *HTTPSource) FetchTopology(ctx context.Context, key xtenant.TenantKey, creds *Credentials) (topo *Topology, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if creds == nil {
		return nil, fmt.Errorf("%w: nil credentials", ErrResponseInvalid)
	}
	ctx, span := s.start(ctx, MetricsOpFetchConfig, key)
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	query := url.Values{}
	query.Set("serviceId", key.ServiceID)
	query.Set("userId", creds.UserID)
	endpoint := strings.TrimRight(creds.ConfigAddress, "/") + s.config.TopologyPath + "?" + query.Encode()

	var headers map[string]string
	if creds.ConfigUser != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(creds.ConfigUser + ":" + creds.ConfigPassword))
		headers = map[string]string{"Authorization": "Basic " + auth}
	}

	var t Topology
	if err := s.http.Get(ctx, endpoint, headers, &t); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Hosts) == "" {
		return nil, fmt.Errorf("%w: missing hosts", ErrResponseInvalid)
	}
	return &t, nil
}

func (s *HTTPSource) buildTarget(topo *Topology) (xredis.Target, error) {
	target, err := xredis.ParseTarget(topo.Hosts)
	if err != nil {
		return xredis.Target{}, fmt.Errorf("%w: %w", ErrResponseInvalid, err)
	}

	password := topo.Password
	if topo.PasswordEncrypted && password != "" {
		if s.decrypter == nil {
			return xredis.Target{}, fmt.Errorf("%w: no decrypter configured", ErrDecrypt)
		}
		if password, err = s.decrypter.Decrypt(password); err != nil {
			return xredis.Target{}, err
		}
	}

	target.Username = topo.Username
	target.Password = password
	target.DB = topo.DB
	target.Pool = xredis.Pool{
		MaxTotal:     topo.MaxTotal,
		MaxIdle:      topo.MaxIdle,
		MinIdle:      topo.MinIdle,
		MaxWait:      time.Duration(topo.MaxWaitMillis) * time.Millisecond,
		TestOnBorrow: topo.TestOnBorrow,
	}
	if err := target.Validate(); err != nil {
		return xredis.Target{}, fmt.Errorf("%w: %w", ErrResponseInvalid, err)
	}
	return target, nil
}

func (s *HTTPSource) start(ctx context.Context, op string, key xtenant.TenantKey) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, s.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: op,
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String(MetricsAttrTenantID, key.TenantID),
			xmetrics.String(MetricsAttrServiceID, key.ServiceID),
		},
	})
}
