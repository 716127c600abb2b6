package xredis

import (
	"context"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-redis 内部 goroutine：连接池 tryDial 和 circuit breaker cleanupLoop
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).tryDial"),
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/maintnotifications.(*CircuitBreakerManager).cleanupLoop"),
		goleak.IgnoreTopFunction("time.Sleep"),
	)
}

// =============================================================================
// 测试辅助
// =============================================================================

func newMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr
}

func newTestClient(t *testing.T, mr *miniredis.Miniredis, topology Topology, opts ...Option) *Client {
	t.Helper()
	target := Target{Topology: topology, Addrs: []string{mr.Addr()}}
	c, err := New(target, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// faultHook 让指定命令的前 n 次执行返回 err，n < 0 表示一直失败。
type faultHook struct {
	cmd       string
	always    bool
	remaining atomic.Int64
	err       error
	hits      atomic.Int64
}

func newFaultHook(cmd string, n int64) *faultHook {
	h := &faultHook{cmd: cmd, always: n < 0, err: syscall.ECONNRESET}
	h.remaining.Store(n)
	return h
}

func (h *faultHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *faultHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == h.cmd {
			h.hits.Add(1)
			if h.always || h.remaining.Add(-1) >= 0 {
				return h.err
			}
		}
		return next(ctx, cmd)
	}
}

func (h *faultHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

// barrierHook 让前 n 次 get 全部到达后再一起失败，模拟并发调用方同时观察到断线。
type barrierHook struct {
	remaining atomic.Int64
	arrived   sync.WaitGroup
}

func newBarrierHook(n int) *barrierHook {
	h := &barrierHook{}
	h.remaining.Store(int64(n))
	h.arrived.Add(n)
	return h
}

func (h *barrierHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *barrierHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "get" && h.remaining.Add(-1) >= 0 {
			h.arrived.Done()
			h.arrived.Wait()
			return syscall.ECONNRESET
		}
		return next(ctx, cmd)
	}
}

func (h *barrierHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}
