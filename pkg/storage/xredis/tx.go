package xredis

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xredis/pkg/observability/xlog"
)

// Tx 是显式的事务上下文：WATCH → 读 → MULTI/EXEC 都在同一个句柄上执行。
//
// StartTransaction 返回的 Tx 独占一个句柄，必须以 Commit、Rollback 或 Close 结束，
// 否则句柄泄露。三者都会清除 WATCH 并归还句柄，重复调用是安全的。
// Tx 不是并发安全的，只能由一个调用方使用。
type Tx struct {
	client *Client
	conn   *redis.Conn
	// owned 非 nil 时由 Tx 负责归还；RunTransaction 中由调用器归还。
	owned *Handle
	done  atomic.Bool
}

// IsTxConflict 报告 err 是否为 EXEC 乐观锁冲突（WATCH 的键在 EXEC 前被修改）。
func IsTxConflict(err error) bool {
	return errors.Is(err, redis.TxFailedErr)
}

// StartTransaction 租借一个句柄并返回事务上下文。
// cluster 拓扑返回 ErrUnsupported：集群路由器没有跨调用的连接上下文。
// 句柄期间的连接类错误会触发一次重建，但不会重放。
func (c *Client) StartTransaction(ctx context.Context) (*Tx, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.target.Topology == TopologyCluster {
		return nil, newError(KindUnsupported, "multi", errors.New("transactions are not supported on cluster topology"))
	}

	h, err := c.conn.acquire(ctx)
	if err != nil {
		return nil, wrapError("multi", err)
	}
	return &Tx{client: c, conn: h.conn, owned: h}, nil
}

// RunTransaction 在调用器中执行 fn，fn 内的 Tx 与一次调用共享句柄。
// fn 返回连接类错误时，整个 fn 在新连接上重放一次。fn 结束后 WATCH 被清除。
// cluster 拓扑返回 ErrUnsupported。
func (c *Client) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if c.target.Topology == TopologyCluster {
		return newError(KindUnsupported, "transaction", errors.New("transactions are not supported on cluster topology"))
	}
	_, err := Invoke(ctx, c, "transaction", nil, func(ctx context.Context, cmd Commander) (struct{}, error) {
		conn, ok := cmd.(*redis.Conn)
		if !ok {
			return struct{}{}, newError(KindUnsupported, "transaction", errors.New("handle has no dedicated connection"))
		}
		tx := &Tx{client: c, conn: conn}
		defer tx.finish(ctx)
		return struct{}{}, fn(ctx, tx)
	})
	return err
}

// Commander 返回事务句柄上的命令集合，用于 WATCH 之后的任意读取。
func (t *Tx) Commander() Commander {
	return t.conn
}

// Watch 监视键。EXEC 前这些键被其他客户端修改时 EXEC 失败，见 IsTxConflict。
func (t *Tx) Watch(ctx context.Context, keys ...string) error {
	if t.done.Load() {
		return ErrTxDone
	}
	if len(keys) == 0 {
		return newError(KindOperation, "watch", errors.New("no keys to watch"))
	}
	args := make([]any, 0, len(keys)+1)
	args = append(args, "watch")
	for _, k := range keys {
		args = append(args, k)
	}
	return t.wrap("watch", t.conn.Do(ctx, args...).Err())
}

// Get 在事务句柄上读取键，键不存在时 found 为 false。
func (t *Tx) Get(ctx context.Context, key string) (value string, found bool, err error) {
	if t.done.Load() {
		return "", false, ErrTxDone
	}
	value, err = t.conn.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, t.wrap("get", err)
	}
	return value, true, nil
}

// Exec 以 MULTI/EXEC 提交 fn 排入的命令。
// WATCH 冲突时返回的错误满足 IsTxConflict，此时 WATCH 已被服务端清除，可重新 Watch。
func (t *Tx) Exec(ctx context.Context, fn func(pipe redis.Pipeliner) error) ([]redis.Cmder, error) {
	if t.done.Load() {
		return nil, ErrTxDone
	}
	cmds, err := t.conn.TxPipelined(ctx, fn)
	if err != nil {
		return cmds, t.wrap("exec", err)
	}
	return cmds, nil
}

// Unwatch 清除当前 WATCH，Tx 仍可继续使用。
func (t *Tx) Unwatch(ctx context.Context) error {
	if t.done.Load() {
		return ErrTxDone
	}
	return t.wrap("unwatch", t.conn.Do(ctx, "unwatch").Err())
}

// Commit 执行 Exec 并结束事务。
func (t *Tx) Commit(ctx context.Context, fn func(pipe redis.Pipeliner) error) ([]redis.Cmder, error) {
	cmds, err := t.Exec(ctx, fn)
	t.finish(ctx)
	return cmds, err
}

// Rollback 放弃事务：发送 UNWATCH 并结束事务。
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done.Load() {
		return nil
	}
	err := t.Unwatch(ctx)
	t.finish(ctx)
	return err
}

// Close 结束事务，等价于忽略错误的 Rollback。可重复调用。
func (t *Tx) Close() error {
	t.finish(context.Background())
	return nil
}

// finish 清除 WATCH 并归还句柄，只执行一次。
func (t *Tx) finish(ctx context.Context) {
	if t.done.Swap(true) {
		return
	}
	if err := t.conn.Do(context.WithoutCancel(ctx), "unwatch").Err(); err != nil {
		t.client.logger.Debug("xredis: unwatch on finish failed", xlog.Err(err))
	}
	if t.owned != nil {
		t.client.conn.release(t.owned)
	}
}

// wrap 包装错误；独占句柄上的连接类错误会触发重建，下一次调用使用新连接。
func (t *Tx) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := Classify(err)
	if kind == KindConnection && t.owned != nil {
		if _, rerr := t.client.conn.rebuild(t.owned.generation); rerr != nil {
			t.client.logger.Warn("xredis: rebuild from transaction failed", xlog.Err(rerr))
		}
	}
	return newError(kind, op, err)
}
