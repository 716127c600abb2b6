package xredis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xredis/internal/storageopt"
	"github.com/omeyang/xredis/pkg/observability/xlog"
	"github.com/omeyang/xredis/pkg/observability/xmetrics"
)

const componentName = "xredis"

// Client 是拓扑无关的 Redis 客户端，并发安全。
// 所有数据命令都经由同一个调用器执行，享有相同的重建重放语义。
type Client struct {
	target   Target
	conn     *connector
	prober   *prober
	breaker  *gobreaker.CircuitBreaker[*Handle]
	observer xmetrics.Observer
	logger   *slog.Logger
	slow     *storageopt.SlowDetector[SlowCommandInfo]
	closed   atomic.Bool
}

// Stats 是客户端运行统计。
type Stats struct {
	Topology      Topology
	Generation    uint64
	Rebuilds      int64
	Probes        int64
	ProbeFailures int64
	// LastProbeFailure 为零值表示从未探活失败
	LastProbeFailure time.Time
	SlowCommands     int64
	Pool             *redis.PoolStats
}

// New 按目标构建客户端。目标先校验，失败返回 ErrInvalidTarget。
// 默认不拨号；WithHealthCheck 开启时构建后立即 PING，失败则关闭并返回错误。
func New(target Target, opts ...Option) (*Client, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	t := target.withDefaults()
	logger := o.logger.With(xlog.Component(componentName))

	conn, err := newConnector(t, o.hooks, o.drainTimeout, logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		target:   t,
		conn:     conn,
		prober:   &prober{timeout: o.healthTimeout, logger: logger},
		observer: o.observer,
		logger:   logger,
		slow:     storageopt.NewSlowDetector(o.slowThreshold, o.slowHook),
	}
	if o.breaker != nil {
		st := *o.breaker
		if st.Name == "" {
			st.Name = t.Key()
		}
		c.breaker = gobreaker.NewCircuitBreaker[*Handle](st)
	}

	if o.checkOnBuild {
		if err := c.Ping(o.buildCtx); err != nil {
			return nil, errors.Join(fmt.Errorf("xredis: health check failed: %w", err), c.Close())
		}
	}

	logger.Info("xredis: client created",
		xlog.Target(t.Key()),
		xlog.Topology(string(t.Topology)))
	return c, nil
}

// Target 返回应用默认值后的连接目标。
func (c *Client) Target() Target {
	return c.target
}

// Topology 返回拓扑类型。
func (c *Client) Topology() Topology {
	return c.target.Topology
}

// Universal 返回当前一代的底层客户端。
// 直接使用不经过调用器，也不计入排空：重建后旧实例随时可能关闭，
// 调用方应在每次使用前重新获取。
func (c *Client) Universal() redis.UniversalClient {
	return c.conn.universal()
}

// Stats 返回运行统计。
func (c *Client) Stats() Stats {
	gen := c.conn.current.Load()
	return Stats{
		Topology:         c.target.Topology,
		Generation:       gen.id,
		Rebuilds:         c.conn.rebuilds.Load(),
		Probes:           c.prober.stats.Total(),
		ProbeFailures:    c.prober.stats.Failures(),
		LastProbeFailure: c.prober.stats.LastFailure(),
		SlowCommands:     c.slow.Count(),
		Pool:             gen.backend.stats(),
	}
}

// Ping 通过调用器发送 PING。
func (c *Client) Ping(ctx context.Context) error {
	_, err := Invoke(ctx, c, "ping", nil, func(ctx context.Context, cmd Commander) (string, error) {
		return cmd.Ping(ctx).Result()
	})
	return err
}

// Close 关闭客户端及当前一代底层连接，可重复调用。
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	err := c.conn.close()
	c.logger.Info("xredis: client closed", xlog.Target(c.target.Key()))
	if err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("xredis: close: %w", err)
	}
	return nil
}

// IsClosed 报告客户端是否已关闭。
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
