package xconf

// Option 配置加载行为。
type Option func(*options)

type options struct {
	delim     string
	tag       string
	envPrefix string
}

func newOptions(opts []Option) *options {
	o := &options{delim: ".", tag: "koanf"}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithDelim 设置键路径分隔符，默认 "."。空值被忽略。
func WithDelim(delim string) Option {
	return func(o *options) {
		if delim != "" {
			o.delim = delim
		}
	}
}

// WithTag 设置 Unmarshal 使用的结构体标签，默认 "koanf"。空值被忽略。
func WithTag(tag string) Option {
	return func(o *options) {
		if tag != "" {
			o.tag = tag
		}
	}
}

// WithEnvPrefix 在文件配置之上叠加以 prefix 开头的环境变量。空值表示不读取环境变量。
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}
