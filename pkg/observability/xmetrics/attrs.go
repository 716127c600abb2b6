package xmetrics

import "time"

// 组件附加在跨度上的属性键。
const (
	AttrTopology     = "db.redis.topology"
	AttrTarget       = "db.redis.target"
	AttrGeneration   = "db.redis.generation"
	AttrRebuilt      = "db.redis.rebuilt"
	AttrLockName     = "lock.name"
	AttrLockAcquired = "lock.acquired"
	AttrLockReleased = "lock.released"
)

func String(key, value string) Attr { return Attr{Key: key, Value: value} }

func Bool(key string, value bool) Attr { return Attr{Key: key, Value: value} }

func Int64(key string, value int64) Attr { return Attr{Key: key, Value: value} }

// Duration 在 OTel 中记为秒（float64）。
func Duration(key string, value time.Duration) Attr { return Attr{Key: key, Value: value} }
