package xauth

import (
	"log/slog"
	"net/http"

	"github.com/omeyang/xredis/pkg/observability/xmetrics"
)

// Options 定义 HTTPSource 的可选配置。
type Options struct {
	// HTTPClient 自定义 HTTP 客户端。设置后 Config.TLS 和 Config.Timeout 不再生效。
	HTTPClient *http.Client

	// Decrypter 解密 passwordEncrypted 为 true 的密码。
	// 未设置时遇到加密密码返回 ErrDecrypt。
	Decrypter Decrypter

	// Logger 默认 slog.Default()。
	Logger *slog.Logger

	// Observer 默认 NoopObserver。
	Observer xmetrics.Observer
}

// Option 定义配置函数类型。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Logger:   slog.Default(),
		Observer: xmetrics.NoopObserver{},
	}
}

func applyOptions(opts []Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

// WithHTTPClient 设置自定义 HTTP 客户端。
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// WithDecrypter 设置密码解密器。
func WithDecrypter(d Decrypter) Option {
	return func(o *Options) {
		o.Decrypter = d
	}
}

// WithLogger 设置日志记录器。传入 nil 时使用 slog.Default()。
// 如需禁用日志，可传入 slog.New(slog.NewTextHandler(io.Discard, nil))。
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithObserver 设置可观测性接口。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}
