package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envLevelSep 是环境变量名中的层级分隔符。
const envLevelSep = "__"

type koanfConfig struct {
	k      atomic.Pointer[koanf.Koanf]
	mu     sync.Mutex // 串行化 Reload
	path   string
	format Format
	opts   *options
}

// New 读取 path 指向的文件，格式由扩展名决定（.yaml、.yml、.json）。
func New(path string, opts ...Option) (Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	c := &koanfConfig{path: path, format: format, opts: newOptions(opts)}
	k, err := c.load()
	if err != nil {
		return nil, err
	}
	c.k.Store(k)
	return c, nil
}

// NewFromBytes 从内存数据创建配置。空数据得到空配置。
func NewFromBytes(data []byte, format Format, opts ...Option) (Config, error) {
	if format != FormatYAML && format != FormatJSON {
		return nil, ErrUnsupportedFormat
	}
	c := &koanfConfig{format: format, opts: newOptions(opts)}
	k, err := c.build(data)
	if err != nil {
		return nil, err
	}
	c.k.Store(k)
	return c, nil
}

func (c *koanfConfig) load() (*koanf.Koanf, error) {
	data, err := os.ReadFile(c.path) //nolint:gosec // 路径来自调用方
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return c.build(data)
}

// build 解析 data，再叠加环境变量。
func (c *koanfConfig) build(data []byte) (*koanf.Koanf, error) {
	k := koanf.New(c.opts.delim)
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parserFor(c.format)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	if c.opts.envPrefix != "" {
		if err := k.Load(env.Provider(c.opts.envPrefix, c.opts.delim, envKeyMapper(k, c.opts)), nil); err != nil {
			return nil, fmt.Errorf("%w: env: %w", ErrLoadFailed, err)
		}
	}
	return k, nil
}

// envKeyMapper 把 PREFIX_A__B 映射为 a.b。路径与已有键大小写不敏感匹配时沿用已有写法。
func envKeyMapper(k *koanf.Koanf, o *options) func(string) string {
	known := make(map[string]string)
	for _, key := range k.Keys() {
		known[strings.ToLower(key)] = key
	}
	return func(name string) string {
		rest := strings.TrimPrefix(name, o.envPrefix)
		if rest == "" {
			return ""
		}
		path := strings.ToLower(strings.ReplaceAll(rest, envLevelSep, o.delim))
		if key, ok := known[path]; ok {
			return key
		}
		return path
	}
}

func (c *koanfConfig) Client() *koanf.Koanf {
	return c.k.Load()
}

func (c *koanfConfig) Unmarshal(path string, target any) error {
	if err := c.k.Load().UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: c.opts.tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

func (c *koanfConfig) Exists(key string) bool {
	return c.k.Load().Exists(key)
}

func (c *koanfConfig) String(key string) string {
	return strings.TrimSpace(c.k.Load().String(key))
}

func (c *koanfConfig) Int(key string) int {
	return c.k.Load().Int(key)
}

func (c *koanfConfig) Bool(key string) bool {
	return c.k.Load().Bool(key)
}

func (c *koanfConfig) Cut(path string) Config {
	sub := &koanfConfig{format: c.format, opts: c.opts}
	sub.k.Store(c.k.Load().Cut(path))
	return sub
}

func (c *koanfConfig) Reload() error {
	if c.path == "" {
		return ErrReloadUnsupported
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k, err := c.load()
	if err != nil {
		return err
	}
	c.k.Store(k)
	return nil
}

func (c *koanfConfig) Path() string {
	return c.path
}

func (c *koanfConfig) Format() Format {
	return c.format
}

func formatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
}

func parserFor(format Format) koanf.Parser {
	if format == FormatJSON {
		return json.Parser()
	}
	return yaml.Parser()
}
