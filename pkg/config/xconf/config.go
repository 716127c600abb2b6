package xconf

import "github.com/knadh/koanf/v2"

// Format 是配置数据格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config 是只读配置视图。
type Config interface {
	// Client 返回当前的 koanf 实例。
	Client() *koanf.Koanf

	// Unmarshal 把 path 下的配置解到 target，path 为空表示整个配置。
	// time.Duration 字段接受 "3s" 这样的字符串。
	Unmarshal(path string, target any) error

	// Exists 报告键是否存在，空字符串值也算存在。
	Exists(key string) bool

	// String 返回去除首尾空白的字符串值，不存在返回空字符串。
	String(key string) string

	// Int 返回整数值，不存在或无法转换返回 0。
	Int(key string) int

	// Bool 返回布尔值，不存在返回 false。
	Bool(key string) bool

	// Cut 返回以 path 为根的子配置快照，path 不存在时为空配置。
	Cut(path string) Config

	// Reload 重新读取文件并叠加环境变量，失败时保留原配置。
	Reload() error

	// Path 返回文件路径，非文件来源返回空字符串。
	Path() string

	Format() Format
}
