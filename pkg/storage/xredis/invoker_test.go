package xredis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 重建重放
// =============================================================================

func TestInvoke_ConnectionFailsOnce_RebuildsOnceAndSucceeds(t *testing.T) {
	mr := newMiniredis(t)
	require.NoError(t, mr.Set("k", "v"))
	hook := newFaultHook("get", 1)
	c := newTestClient(t, mr, TopologySingle, WithHooks(hook))

	val, found, err := c.Get(context.Background(), "k")

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)
	assert.Equal(t, int64(2), hook.hits.Load())
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Rebuilds)
	assert.Equal(t, uint64(2), stats.Generation)
	assert.Equal(t, int64(1), stats.Probes)
}

func TestInvoke_ConnectionAlwaysFails_UnavailableAfterOneRebuild(t *testing.T) {
	mr := newMiniredis(t)
	hook := newFaultHook("get", -1)
	c := newTestClient(t, mr, TopologySingle, WithHooks(hook))

	_, _, err := c.Get(context.Background(), "k")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, int64(2), hook.hits.Load())
	assert.Equal(t, int64(1), c.Stats().Rebuilds)
}

func TestInvoke_ServerDown_ProbeFailsAfterOneRebuild(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	require.NoError(t, c.Set(context.Background(), "k", "v", 0))

	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Rebuilds)
	assert.Equal(t, int64(1), stats.ProbeFailures)
	assert.False(t, stats.LastProbeFailure.IsZero())
}

func TestInvoke_ServerRestarted_Recovers(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", 0))

	// 重启会断开已建立的连接，池中的连接失效
	mr.Close()
	require.NoError(t, mr.Restart())
	require.NoError(t, mr.Set("k", "v2"))

	val, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", val)
	assert.LessOrEqual(t, c.Stats().Rebuilds, int64(1))
}

func TestInvoke_ConcurrentFailures_SinglePhysicalRebuild(t *testing.T) {
	const callers = 8
	mr := newMiniredis(t)
	require.NoError(t, mr.Set("k", "v"))
	c := newTestClient(t, mr, TopologySingle, WithHooks(newBarrierHook(callers)))

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = c.Get(context.Background(), "k")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), c.Stats().Rebuilds)
	assert.Equal(t, uint64(2), c.Stats().Generation)
}

// =============================================================================
// 不重试的错误
// =============================================================================

func TestInvoke_LogicalError_NoRetry(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	ctx := context.Background()
	_, err := c.LPush(ctx, "list", "a")
	require.NoError(t, err)

	_, _, err = c.Get(ctx, "list")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperation)
	assert.Contains(t, err.Error(), "WRONGTYPE")
	assert.Equal(t, int64(0), c.Stats().Rebuilds)
}

func TestInvoke_CanceledContext_NoRetry(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Get(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), c.Stats().Rebuilds)
}

func TestInvoke_NilContext(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)

	_, _, err := c.Get(nil, "k") //nolint:staticcheck // 测试 nil ctx
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInvoke_ClosedClient(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())

	_, _, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInvoke_GenericFunction(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	ctx := context.Background()

	n, err := Invoke(ctx, c, "incr", nil, func(ctx context.Context, cmd Commander) (int64, error) {
		return cmd.IncrBy(ctx, "counter", 5).Result()
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	sentinelErr := errors.New("boom")
	_, err = Invoke(ctx, c, "custom", nil, func(context.Context, Commander) (int, error) {
		return 0, sentinelErr
	})
	assert.ErrorIs(t, err, ErrOperation)
	assert.ErrorIs(t, err, sentinelErr)
}

// =============================================================================
// testOnBorrow / 熔断 / 慢命令
// =============================================================================

func TestInvoke_TestOnBorrow_ServerDown(t *testing.T) {
	mr := newMiniredis(t)
	c, err := New(Target{
		Topology: TopologySingle,
		Addrs:    []string{mr.Addr()},
		Pool:     Pool{TestOnBorrow: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Ping(context.Background()))
	mr.Close()

	err = c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int64(1), c.Stats().Rebuilds)
}

func TestInvoke_RebuildBreakerOpens(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle, WithRebuildBreaker(gobreaker.Settings{
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	}))
	mr.Close()

	ctx := context.Background()
	_, _, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int64(1), c.Stats().Rebuilds)

	_, _, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int64(1), c.Stats().Rebuilds)
}

func TestInvoke_SlowCommandHook(t *testing.T) {
	mr := newMiniredis(t)
	var (
		mu   sync.Mutex
		seen []SlowCommandInfo
	)
	c := newTestClient(t, mr, TopologySingle, WithSlowCommandThreshold(time.Nanosecond, func(_ context.Context, info SlowCommandInfo) {
		mu.Lock()
		seen = append(seen, info)
		mu.Unlock()
	}))

	require.NoError(t, c.Set(context.Background(), "k", "v", 0))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "set", seen[0].Command)
	assert.Equal(t, TopologySingle, seen[0].Topology)
	assert.Equal(t, int64(1), c.Stats().SlowCommands)
}
