package xredis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xredis/pkg/observability/xlog"
	"github.com/omeyang/xredis/pkg/observability/xmetrics"
)

var errProbeFailed = errors.New("xredis: probe after rebuild failed")

// Invoke 是所有数据命令的唯一执行入口。
//
// 流程：租借句柄 → 执行 fn → 归还句柄。fn 返回连接类错误时，
// 重建底层连接、重新租借并探活，可达则重放 fn 一次；重放失败或探活失败
// 返回 ErrUnavailable。其他错误立即按类别包装返回。每次调用最多重建一次。
//
// 重放意味着 fn 可能执行两次：请求已到达服务端、只有回复丢失时，
// 非幂等命令会被再次应用。被替换的一代先排空在途句柄再关闭（见 WithDrainTimeout），
// 其他调用方正在执行的命令不会因重建而被打断。
//
// keys 是 fn 涉及的全部键，cluster 拓扑据此做同槽检查；单键命令可传 nil。
// fn 返回的 redis.Nil 原样透传。
func Invoke[T any](ctx context.Context, c *Client, op string, keys []string, fn func(ctx context.Context, cmd Commander) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		return zero, ErrNilContext
	}
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if c.target.Topology == TopologyCluster && len(keys) > 1 {
		if err := checkSameSlot(keys); err != nil {
			return zero, newError(KindCrossShard, op, err)
		}
	}

	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: op,
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String(xmetrics.AttrTopology, string(c.target.Topology))},
	})
	start := time.Now()

	v, rebuilt, err := execute(ctx, c, op, fn)

	elapsed := time.Since(start)
	c.slow.Observe(ctx, elapsed, SlowCommandInfo{
		Command:  op,
		Topology: c.target.Topology,
		Duration: elapsed,
	})
	result := xmetrics.Result{Err: err, Rebuilt: rebuilt}
	if errors.Is(err, redis.Nil) {
		result.Status = xmetrics.StatusMiss
	}
	span.End(result)
	return v, err
}

func execute[T any](ctx context.Context, c *Client, op string, fn func(context.Context, Commander) (T, error)) (T, bool, error) {
	var zero T

	h, err := c.conn.acquire(ctx)
	if err != nil {
		if KindOf(err) != KindConnection || h == nil {
			return zero, false, wrapError(op, err)
		}
		return replay(ctx, c, op, h.generation, err, fn)
	}

	v, err := fn(ctx, h.cmd)
	c.conn.release(h)
	if err == nil || errors.Is(err, redis.Nil) {
		return v, false, err
	}
	if Classify(err) != KindConnection {
		return zero, false, wrapError(op, err)
	}
	return replay(ctx, c, op, h.generation, err, fn)
}

// replay 执行"重建 → 探活 → 重放一次"。
func replay[T any](ctx context.Context, c *Client, op string, observed uint64, cause error, fn func(context.Context, Commander) (T, error)) (T, bool, error) {
	var zero T
	c.logger.Warn("xredis: connection failure, rebuilding",
		xlog.Operation(op),
		xlog.Target(c.target.Key()),
		slog.Uint64("generation", observed),
		xlog.Err(cause))

	h, err := c.recover(ctx, observed)
	if err != nil {
		c.logger.Warn("xredis: unavailable after rebuild",
			xlog.Operation(op),
			xlog.Target(c.target.Key()),
			xlog.Err(err))
		return zero, true, newError(KindUnavailable, op, errors.Join(cause, err))
	}
	defer c.conn.release(h)

	v, err := fn(ctx, h.cmd)
	if err == nil || errors.Is(err, redis.Nil) {
		return v, true, err
	}
	c.logger.Warn("xredis: replay failed",
		xlog.Operation(op),
		xlog.Target(c.target.Key()),
		xlog.Err(err))
	return zero, true, newError(KindUnavailable, op, err)
}

// recover 重建（已被他人重建则复用）、租借并探活，返回可用句柄。
func (c *Client) recover(ctx context.Context, observed uint64) (*Handle, error) {
	step := func() (*Handle, error) {
		_, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
			Component: componentName,
			Operation: "rebuild",
			Kind:      xmetrics.KindInternal,
			Attrs:     []xmetrics.Attr{xmetrics.Int64(xmetrics.AttrGeneration, int64(observed))}, //nolint:gosec // 代数不会溢出
		})
		h, err := c.rebuildAndProbe(ctx, observed)
		span.End(xmetrics.Result{Err: err})
		return h, err
	}
	if c.breaker == nil {
		return step()
	}
	return c.breaker.Execute(step)
}

func (c *Client) rebuildAndProbe(ctx context.Context, observed uint64) (*Handle, error) {
	if _, err := c.conn.rebuild(observed); err != nil {
		return nil, err
	}
	h, err := c.conn.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !c.prober.probe(ctx, h) {
		c.conn.release(h)
		return nil, errProbeFailed
	}
	return h, nil
}

// wrapError 按类别包装错误，已是 *Error 的保持不变。
func wrapError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(Classify(err), op, err)
}
