package xredis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// 本文件中的命令都是一对一转发，全部经由 Invoke 执行。

// =============================================================================
// 通用
// =============================================================================

// Do 执行任意命令。cluster 拓扑下不做本地同槽检查，由服务端 CROSSSLOT 回复映射为 ErrCrossShard。
// WATCH/MULTI/EXEC 等有状态命令请使用 Tx。
func (c *Client) Do(ctx context.Context, args ...any) (any, error) {
	op := "do"
	if len(args) > 0 {
		if name, ok := args[0].(string); ok {
			op = strings.ToLower(name)
		}
	}
	switch op {
	case "watch", "unwatch", "multi", "exec", "discard":
		return nil, newError(KindUnsupported, op, errors.New("use StartTransaction for transactional commands"))
	}
	return Invoke(ctx, c, op, nil, func(ctx context.Context, cmd Commander) (any, error) {
		return cmd.Do(ctx, args...).Result()
	})
}

// =============================================================================
// 字符串与键
// =============================================================================

// Get 返回键的值。键不存在时 found 为 false，err 为 nil。
func (c *Client) Get(ctx context.Context, key string) (value string, found bool, err error) {
	value, err = Invoke(ctx, c, "get", nil, func(ctx context.Context, cmd Commander) (string, error) {
		return cmd.Get(ctx, key).Result()
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	return value, err == nil, err
}

// Set 设置键值，ttl <= 0 表示不过期。
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	_, err := Invoke(ctx, c, "set", nil, func(ctx context.Context, cmd Commander) (string, error) {
		return cmd.Set(ctx, key, value, positive(ttl)).Result()
	})
	return err
}

// SetNX 仅在键不存在时设置，返回是否设置成功。ttl <= 0 表示不过期。
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return Invoke(ctx, c, "setnx", nil, func(ctx context.Context, cmd Commander) (bool, error) {
		return cmd.SetNX(ctx, key, value, positive(ttl)).Result()
	})
}

// Expire 设置过期时间，返回键是否存在。
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return Invoke(ctx, c, "expire", nil, func(ctx context.Context, cmd Commander) (bool, error) {
		return cmd.Expire(ctx, key, ttl).Result()
	})
}

// TTL 剩余生存时间的特殊返回值。
const (
	// TTLNoExpiry 表示键存在但未设置过期时间。
	TTLNoExpiry time.Duration = -1
	// TTLKeyMissing 表示键不存在。
	TTLKeyMissing time.Duration = -2
)

// TTL 返回剩余生存时间。键无过期返回 TTLNoExpiry，键不存在返回 TTLKeyMissing。
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	// go-redis 对 -1/-2 保留原始整数，不乘精度，与上面两个常量一致。
	return Invoke(ctx, c, "ttl", nil, func(ctx context.Context, cmd Commander) (time.Duration, error) {
		return cmd.TTL(ctx, key).Result()
	})
}

// Del 删除键，返回删除数量。cluster 拓扑下多个键必须同槽。
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	return Invoke(ctx, c, "del", keys, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.Del(ctx, keys...).Result()
	})
}

// Exists 返回存在的键数量。cluster 拓扑下多个键必须同槽。
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	return Invoke(ctx, c, "exists", keys, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.Exists(ctx, keys...).Result()
	})
}

// IncrBy 原子增加整数值。
func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return Invoke(ctx, c, "incrby", nil, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.IncrBy(ctx, key, delta).Result()
	})
}

// MGet 批量读取。缺失的键对应 nil。cluster 拓扑下键必须同槽。
func (c *Client) MGet(ctx context.Context, keys ...string) ([]any, error) {
	return Invoke(ctx, c, "mget", keys, func(ctx context.Context, cmd Commander) ([]any, error) {
		return cmd.MGet(ctx, keys...).Result()
	})
}

// =============================================================================
// 集合
// =============================================================================

func (c *Client) SAdd(ctx context.Context, key string, members ...any) (int64, error) {
	return Invoke(ctx, c, "sadd", nil, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.SAdd(ctx, key, members...).Result()
	})
}

func (c *Client) SRem(ctx context.Context, key string, members ...any) (int64, error) {
	return Invoke(ctx, c, "srem", nil, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.SRem(ctx, key, members...).Result()
	})
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	return Invoke(ctx, c, "smembers", nil, func(ctx context.Context, cmd Commander) ([]string, error) {
		return cmd.SMembers(ctx, key).Result()
	})
}

func (c *Client) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	return Invoke(ctx, c, "sismember", nil, func(ctx context.Context, cmd Commander) (bool, error) {
		return cmd.SIsMember(ctx, key, member).Result()
	})
}

// SUnion 求并集。cluster 拓扑下键跨槽返回 ErrCrossShard。
func (c *Client) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	return Invoke(ctx, c, "sunion", keys, func(ctx context.Context, cmd Commander) ([]string, error) {
		return cmd.SUnion(ctx, keys...).Result()
	})
}

// SDiff 求差集。cluster 拓扑下键跨槽返回 ErrCrossShard。
func (c *Client) SDiff(ctx context.Context, keys ...string) ([]string, error) {
	return Invoke(ctx, c, "sdiff", keys, func(ctx context.Context, cmd Commander) ([]string, error) {
		return cmd.SDiff(ctx, keys...).Result()
	})
}

// SDiffStore 求差集并写入 destination。destination 也参与同槽检查。
func (c *Client) SDiffStore(ctx context.Context, destination string, keys ...string) (int64, error) {
	all := append([]string{destination}, keys...)
	return Invoke(ctx, c, "sdiffstore", all, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.SDiffStore(ctx, destination, keys...).Result()
	})
}

// SInter 求交集。cluster 拓扑下键跨槽返回 ErrCrossShard。
func (c *Client) SInter(ctx context.Context, keys ...string) ([]string, error) {
	return Invoke(ctx, c, "sinter", keys, func(ctx context.Context, cmd Commander) ([]string, error) {
		return cmd.SInter(ctx, keys...).Result()
	})
}

// =============================================================================
// 哈希
// =============================================================================

// HSet 设置字段，values 为 field, value 交替或 map。
func (c *Client) HSet(ctx context.Context, key string, values ...any) (int64, error) {
	return Invoke(ctx, c, "hset", nil, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.HSet(ctx, key, values...).Result()
	})
}

// HGet 读取字段，字段不存在时 found 为 false。
func (c *Client) HGet(ctx context.Context, key, field string) (value string, found bool, err error) {
	value, err = Invoke(ctx, c, "hget", nil, func(ctx context.Context, cmd Commander) (string, error) {
		return cmd.HGet(ctx, key, field).Result()
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	return value, err == nil, err
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return Invoke(ctx, c, "hgetall", nil, func(ctx context.Context, cmd Commander) (map[string]string, error) {
		return cmd.HGetAll(ctx, key).Result()
	})
}

func (c *Client) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	return Invoke(ctx, c, "hdel", nil, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.HDel(ctx, key, fields...).Result()
	})
}

// =============================================================================
// 列表
// =============================================================================

func (c *Client) LPush(ctx context.Context, key string, values ...any) (int64, error) {
	return Invoke(ctx, c, "lpush", nil, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.LPush(ctx, key, values...).Result()
	})
}

func (c *Client) RPush(ctx context.Context, key string, values ...any) (int64, error) {
	return Invoke(ctx, c, "rpush", nil, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.RPush(ctx, key, values...).Result()
	})
}

// LPop 弹出列表头部元素，列表为空时 found 为 false。
func (c *Client) LPop(ctx context.Context, key string) (value string, found bool, err error) {
	value, err = Invoke(ctx, c, "lpop", nil, func(ctx context.Context, cmd Commander) (string, error) {
		return cmd.LPop(ctx, key).Result()
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	return value, err == nil, err
}

func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return Invoke(ctx, c, "lrange", nil, func(ctx context.Context, cmd Commander) ([]string, error) {
		return cmd.LRange(ctx, key, start, stop).Result()
	})
}

// =============================================================================
// 有序集合
// =============================================================================

func (c *Client) ZAdd(ctx context.Context, key string, members ...redis.Z) (int64, error) {
	return Invoke(ctx, c, "zadd", nil, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.ZAdd(ctx, key, members...).Result()
	})
}

func (c *Client) ZRem(ctx context.Context, key string, members ...any) (int64, error) {
	return Invoke(ctx, c, "zrem", nil, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.ZRem(ctx, key, members...).Result()
	})
}

// ZScore 返回成员分数，成员不存在时 found 为 false。
func (c *Client) ZScore(ctx context.Context, key, member string) (score float64, found bool, err error) {
	score, err = Invoke(ctx, c, "zscore", nil, func(ctx context.Context, cmd Commander) (float64, error) {
		return cmd.ZScore(ctx, key, member).Result()
	})
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	return score, err == nil, err
}

func (c *Client) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]redis.Z, error) {
	return Invoke(ctx, c, "zrange", nil, func(ctx context.Context, cmd Commander) ([]redis.Z, error) {
		return cmd.ZRangeWithScores(ctx, key, start, stop).Result()
	})
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// String 实现 fmt.Stringer。
func (c *Client) String() string {
	return fmt.Sprintf("xredis.Client(%s)", c.target.Key())
}
