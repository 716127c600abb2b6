package xregistry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xredis/internal/storageopt"
	"github.com/omeyang/xredis/pkg/context/xtenant"
	"github.com/omeyang/xredis/pkg/observability/xlog"
	"github.com/omeyang/xredis/pkg/observability/xmetrics"
	"github.com/omeyang/xredis/pkg/storage/xredis"
)

const componentName = "xregistry"

// 解析键前缀。
const (
	tenantPrefix = "tenant:"
	targetPrefix = "target:"
)

// Registry 维护解析键到客户端的映射，并发安全。
type Registry struct {
	source Source
	opts   *options
	logger *slog.Logger
	group  singleflight.Group

	mu      sync.Mutex
	closed  bool
	clients map[string]*xredis.Client
	// backends 以后端指纹索引客户端，不同解析键解析到同一后端时共享。
	backends map[string]*xredis.Client
}

// New 创建注册表。source 为 nil 时只能使用 ResolveTarget 和 ForTarget。
func New(source Source, opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Registry{
		source:   source,
		opts:     o,
		logger:   o.logger.With(xlog.Component(componentName)),
		clients:  make(map[string]*xredis.Client),
		backends: make(map[string]*xredis.Client),
	}
}

// Resolve 返回租户键对应的客户端，首次访问时通过 Source 解析并构建。
func (r *Registry) Resolve(ctx context.Context, key xtenant.TenantKey) (*xredis.Client, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	if r.source == nil {
		return nil, ErrNoSource
	}
	return r.get(ctx, tenantPrefix+key.String(), func(ctx context.Context) (xredis.Target, error) {
		return r.source.Resolve(ctx, key)
	})
}

// ResolveTarget 按原始目标字符串返回客户端，语法同 xredis.ParseTarget，不带认证。
func (r *Registry) ResolveTarget(ctx context.Context, raw string) (*xredis.Client, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	target, err := xredis.ParseTarget(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	return r.ForTarget(ctx, target)
}

// ForTarget 按已构造的目标返回客户端。
func (r *Registry) ForTarget(ctx context.Context, target xredis.Target) (*xredis.Client, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	return r.get(ctx, targetPrefix+fingerprint(target), func(context.Context) (xredis.Target, error) {
		return target, nil
	})
}

// Len 返回已注册的解析键数量。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Keys 返回排序后的解析键。
func (r *Registry) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.clients))
	for k := range r.clients {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	slices.Sort(keys)
	return keys
}

// Close 关闭全部客户端，可重复调用。
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	backends := r.backends
	r.clients = make(map[string]*xredis.Client)
	r.backends = make(map[string]*xredis.Client)
	r.mu.Unlock()

	var errs []error
	for _, c := range backends {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.logger.Info("xregistry: closed", slog.Int("clients", len(backends)))
	return errors.Join(errs...)
}

func (r *Registry) get(ctx context.Context, regKey string, resolve func(context.Context) (xredis.Target, error)) (*xredis.Client, error) {
	if c, err := r.cached(regKey); c != nil || err != nil {
		return c, err
	}

	ch := r.group.DoChan(regKey, func() (any, error) {
		return r.create(ctx, regKey, resolve)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*xredis.Client), nil
	}
}

// cached 返回已注册的客户端，未注册时返回 (nil, nil)。
func (r *Registry) cached(regKey string) (*xredis.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	return r.clients[regKey], nil
}

// create 解析并构建客户端。解析不随发起者的 ctx 取消，由 resolveTimeout 限时。
func (r *Registry) create(ctx context.Context, regKey string, resolve func(context.Context) (xredis.Target, error)) (client *xredis.Client, err error) {
	if c, err := r.cached(regKey); c != nil || err != nil {
		return c, err
	}

	ctx, cancel := storageopt.Detached(ctx, r.opts.resolveTimeout)
	defer cancel()

	var target xredis.Target
	ctx, span := xmetrics.Start(ctx, r.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "resolve",
		Kind:      xmetrics.KindInternal,
	})
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.String(xmetrics.AttrTarget, target.Key())}})
	}()

	target, err = resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolve, regKey, err)
	}
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolve, regKey, err)
	}
	fp := fingerprint(target)

	if c, err := r.share(regKey, fp); c != nil || err != nil {
		return c, err
	}

	built, err := xredis.New(target, r.opts.clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolve, regKey, err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = built.Close() //nolint:errcheck // 未使用过的客户端
		return nil, ErrRegistryClosed
	}
	if c, ok := r.backends[fp]; ok {
		// 另一个解析键同时构建了同一后端
		r.clients[regKey] = c
		r.mu.Unlock()
		_ = built.Close() //nolint:errcheck // 未使用过的客户端
		return c, nil
	}
	r.backends[fp] = built
	r.clients[regKey] = built
	r.mu.Unlock()

	r.logger.Info("xregistry: client registered",
		slog.String("key", regKey),
		xlog.Target(target.Key()))
	return built, nil
}

// share 在后端已有客户端时把 regKey 指向它。
func (r *Registry) share(regKey, fp string) (*xredis.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	c, ok := r.backends[fp]
	if !ok {
		return nil, nil
	}
	r.clients[regKey] = c
	r.logger.Debug("xregistry: sharing client",
		slog.String("key", regKey),
		xlog.Target(c.Target().Key()))
	return c, nil
}

// fingerprint 标识一个后端：目标 Key 加上凭据与连接参数的摘要。
func fingerprint(t xredis.Target) string {
	sum := xxhash.Sum64String(fmt.Sprintf("%s\x00%s\x00%s\x00%+v\x00%d/%d/%d",
		t.Username, t.Password, t.SentinelPassword, t.Pool,
		t.DialTimeout, t.ReadTimeout, t.WriteTimeout))
	return fmt.Sprintf("%s#%016x", t.Key(), sum)
}
