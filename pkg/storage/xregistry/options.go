package xregistry

import (
	"log/slog"
	"time"

	"github.com/omeyang/xredis/pkg/observability/xmetrics"
	"github.com/omeyang/xredis/pkg/storage/xredis"
)

// DefaultResolveTimeout 是单次解析（含构建客户端）的默认超时。
const DefaultResolveTimeout = 30 * time.Second

// Option 定义 Registry 的配置选项。
type Option func(*options)

type options struct {
	clientOptions  []xredis.Option
	resolveTimeout time.Duration
	logger         *slog.Logger
	observer       xmetrics.Observer
}

func defaultOptions() *options {
	return &options{
		resolveTimeout: DefaultResolveTimeout,
		logger:         slog.Default(),
		observer:       xmetrics.NoopObserver{},
	}
}

// WithClientOptions 设置构建每个客户端时使用的选项。
func WithClientOptions(opts ...xredis.Option) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

// WithResolveTimeout 设置单次解析的超时。
// 解析由首个调用者发起、其余调用者共享，不随某个调用者的 ctx 取消。
func WithResolveTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.resolveTimeout = d
		}
	}
}

// WithLogger 设置日志记录器，nil 被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置统一观测接口，nil 被忽略。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}
