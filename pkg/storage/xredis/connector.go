package xredis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xredis/pkg/observability/xlog"
)

// =============================================================================
// 句柄与命令集合
// =============================================================================

// Commander 是句柄上可执行的命令集合。
// *redis.Conn（single/sentinel）和 *redis.ClusterClient（cluster）都满足它。
type Commander interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Do(ctx context.Context, args ...any) *redis.Cmd

	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd

	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd
	SUnion(ctx context.Context, keys ...string) *redis.StringSliceCmd
	SDiff(ctx context.Context, keys ...string) *redis.StringSliceCmd
	SDiffStore(ctx context.Context, destination string, keys ...string) *redis.IntCmd
	SInter(ctx context.Context, keys ...string) *redis.StringSliceCmd

	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd

	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd

	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
}

// 编译期检查。
var (
	_ Commander = (*redis.Conn)(nil)
	_ Commander = (*redis.ClusterClient)(nil)
)

// Handle 是一次调用独占的租借句柄。
type Handle struct {
	cmd        Commander
	conn       *redis.Conn // cluster 拓扑为 nil
	generation uint64
	release    func() error
	once       sync.Once
}

// Commander 返回句柄上的命令集合。
func (h *Handle) Commander() Commander {
	return h.cmd
}

// Generation 返回句柄所属的底层客户端代数。
func (h *Handle) Generation() uint64 {
	return h.generation
}

// =============================================================================
// 拓扑后端
// =============================================================================

// backend 是某一代底层 go-redis 对象。三种拓扑各有一个实现。
type backend interface {
	topology() Topology
	lease(ctx context.Context) (Commander, *redis.Conn, func() error)
	universal() redis.UniversalClient
	stats() *redis.PoolStats
	close() error
}

// pooledBackend 覆盖 single 和 sentinel：两者都是 *redis.Client，
// 区别只在于构建方式（直连或经哨兵发现主节点）。
type pooledBackend struct {
	kind   Topology
	client *redis.Client
}

func (b *pooledBackend) topology() Topology { return b.kind }

func (b *pooledBackend) lease(ctx context.Context) (Commander, *redis.Conn, func() error) {
	conn := b.client.Conn()
	return conn, conn, conn.Close
}

func (b *pooledBackend) universal() redis.UniversalClient { return b.client }
func (b *pooledBackend) stats() *redis.PoolStats          { return b.client.PoolStats() }
func (b *pooledBackend) close() error                     { return b.client.Close() }

// clusterBackend 没有单一连接池，句柄就是集群路由器。
type clusterBackend struct {
	client *redis.ClusterClient
}

func (b *clusterBackend) topology() Topology { return TopologyCluster }

func (b *clusterBackend) lease(context.Context) (Commander, *redis.Conn, func() error) {
	return b.client, nil, func() error { return nil }
}

func (b *clusterBackend) universal() redis.UniversalClient { return b.client }
func (b *clusterBackend) stats() *redis.PoolStats          { return b.client.PoolStats() }
func (b *clusterBackend) close() error                     { return b.client.Close() }

// buildBackend 按拓扑构建底层对象。go-redis 惰性拨号，这里不产生网络 IO。
// MaxRetries 置为 -1：重试只发生在调用器里。
func buildBackend(t Target, hooks []redis.Hook) (backend, error) {
	var b backend
	switch t.Topology {
	case TopologySingle:
		client := redis.NewClient(&redis.Options{
			Addr:            t.Addrs[0],
			Username:        t.Username,
			Password:        t.Password,
			DB:              t.DB,
			MaxRetries:      -1,
			DialTimeout:     t.DialTimeout,
			ReadTimeout:     t.ReadTimeout,
			WriteTimeout:    t.WriteTimeout,
			PoolSize:        t.Pool.MaxTotal,
			MaxIdleConns:    t.Pool.MaxIdle,
			MinIdleConns:    t.Pool.MinIdle,
			PoolTimeout:     t.Pool.MaxWait,
			DisableIdentity: true,
		})
		b = &pooledBackend{kind: TopologySingle, client: client}
	case TopologySentinel:
		client := redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       t.MasterName,
			SentinelAddrs:    t.Addrs,
			SentinelPassword: t.SentinelPassword,
			Username:         t.Username,
			Password:         t.Password,
			DB:               t.DB,
			MaxRetries:       -1,
			DialTimeout:      t.DialTimeout,
			ReadTimeout:      t.ReadTimeout,
			WriteTimeout:     t.WriteTimeout,
			PoolSize:         t.Pool.MaxTotal,
			MaxIdleConns:     t.Pool.MaxIdle,
			MinIdleConns:     t.Pool.MinIdle,
			PoolTimeout:      t.Pool.MaxWait,
			DisableIdentity:  true,
		})
		b = &pooledBackend{kind: TopologySentinel, client: client}
	case TopologyCluster:
		client := redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           t.Addrs,
			Username:        t.Username,
			Password:        t.Password,
			MaxRetries:      -1,
			DialTimeout:     t.DialTimeout,
			ReadTimeout:     t.ReadTimeout,
			WriteTimeout:    t.WriteTimeout,
			PoolSize:        t.Pool.MaxTotal,
			MaxIdleConns:    t.Pool.MaxIdle,
			MinIdleConns:    t.Pool.MinIdle,
			PoolTimeout:     t.Pool.MaxWait,
			DisableIdentity: true,
		})
		b = &clusterBackend{client: client}
	default:
		return nil, fmt.Errorf("%w: unknown topology %q", ErrInvalidTarget, t.Topology)
	}

	for _, h := range hooks {
		b.universal().AddHook(h)
	}
	return b, nil
}

// =============================================================================
// 拓扑连接器
// =============================================================================

// generation 是一代底层对象。被替换后进入排空：
// 未归还的句柄全部归还或排空超时后才关闭。
type generation struct {
	id      uint64
	backend backend

	leases   atomic.Int64
	retired  atomic.Bool
	closed   atomic.Bool
	once     sync.Once
	closeErr error
	drain    *time.Timer // 由 rebuildMu 保护
}

func (g *generation) shutdown() error {
	g.once.Do(func() {
		g.closeErr = g.backend.close()
		g.closed.Store(true)
	})
	return g.closeErr
}

func (g *generation) isClosed() bool { return g.closed.Load() }

// connector 持有当前一代底层对象，负责租借句柄和重建。
type connector struct {
	target       Target
	hooks        []redis.Hook
	logger       *slog.Logger
	drainTimeout time.Duration
	current      atomic.Pointer[generation]

	// rebuildMu 是唯一需要互斥的地方：保证并发观察到失败的调用方只触发一次物理重建。
	rebuildMu sync.Mutex
	draining  []*generation
	rebuilds  atomic.Int64
	closed    atomic.Bool
}

func newConnector(t Target, hooks []redis.Hook, drainTimeout time.Duration, logger *slog.Logger) (*connector, error) {
	b, err := buildBackend(t, hooks)
	if err != nil {
		return nil, err
	}
	c := &connector{target: t, hooks: hooks, drainTimeout: drainTimeout, logger: logger}
	c.current.Store(&generation{id: 1, backend: b})
	return c, nil
}

// acquire 租借句柄。testOnBorrow 时先 PING，失败归还句柄并返回连接类错误；
// 此时返回的句柄已归还，只用于读取代数。
func (c *connector) acquire(ctx context.Context) (*Handle, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	gen := c.current.Load()
	gen.leases.Add(1)
	cmd, conn, release := gen.backend.lease(ctx)
	h := &Handle{cmd: cmd, conn: conn, generation: gen.id}
	h.release = func() error {
		err := release()
		if gen.leases.Add(-1) == 0 && gen.retired.Load() {
			c.closeGeneration(gen)
		}
		return err
	}

	if c.target.Pool.TestOnBorrow {
		if err := cmd.Ping(ctx).Err(); err != nil {
			c.release(h)
			return h, newError(Classify(err), "borrow", err)
		}
	}
	return h, nil
}

// release 归还句柄，可重复调用。归还失败只记录日志。
func (c *connector) release(h *Handle) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if err := h.release(); err != nil && !errors.Is(err, redis.ErrClosed) {
			c.logger.Debug("xredis: release handle failed",
				xlog.Target(c.target.Key()),
				xlog.Err(err))
		}
	})
}

// rebuild 丢弃观察到的那一代并重新构建。
// 若 observed 已被其他调用方替换，直接复用新一代，返回 false。
func (c *connector) rebuild(observed uint64) (bool, error) {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	if c.closed.Load() {
		return false, ErrClosed
	}
	old := c.current.Load()
	if old.id != observed {
		return false, nil
	}

	b, err := buildBackend(c.target, c.hooks)
	if err != nil {
		return false, err
	}
	c.current.Store(&generation{id: old.id + 1, backend: b})
	c.rebuilds.Add(1)
	c.retire(old)

	c.logger.Info("xredis: rebuilt connection",
		xlog.Target(c.target.Key()),
		xlog.Topology(string(c.target.Topology)),
		slog.Uint64("generation", old.id+1))
	return true, nil
}

// retire 让被替换的一代进入排空，调用方持有 rebuildMu。
// 没有未归还句柄时立即关闭；否则最后一个句柄归还时关闭，最迟 drainTimeout 后强制关闭。
func (c *connector) retire(g *generation) {
	g.retired.Store(true)
	if g.leases.Load() == 0 || c.drainTimeout <= 0 {
		c.closeGeneration(g)
		return
	}
	g.drain = time.AfterFunc(c.drainTimeout, func() { c.closeGeneration(g) })
	c.draining = append(slices.DeleteFunc(c.draining, (*generation).isClosed), g)
}

func (c *connector) closeGeneration(g *generation) {
	if g.isClosed() {
		return
	}
	if err := g.shutdown(); err != nil && !errors.Is(err, redis.ErrClosed) {
		c.logger.Debug("xredis: close previous generation failed",
			xlog.Target(c.target.Key()),
			slog.Uint64("generation", g.id),
			xlog.Err(err))
	}
}

func (c *connector) currentGeneration() uint64 {
	return c.current.Load().id
}

func (c *connector) universal() redis.UniversalClient {
	return c.current.Load().backend.universal()
}

func (c *connector) close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()
	for _, g := range c.draining {
		g.drain.Stop()
		c.closeGeneration(g)
	}
	c.draining = nil
	return c.current.Load().shutdown()
}
