package xredis

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTx_CommitAppliesQueuedCommands(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	ctx := context.Background()
	require.NoError(t, mr.Set("k", "v1"))

	tx, err := c.StartTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Watch(ctx, "k"))
	val, found, err := tx.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", val)

	_, err = tx.Commit(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, "k", "v2", 0)
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	// 结束后所有操作返回 ErrTxDone，Close/Rollback 可重复调用
	assert.ErrorIs(t, tx.Watch(ctx, "k"), ErrTxDone)
	_, _, err = tx.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrTxDone)
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Close())
}

func TestTx_ConflictDetected(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	ctx := context.Background()
	require.NoError(t, mr.Set("k", "v1"))

	tx, err := c.StartTransaction(ctx)
	require.NoError(t, err)
	defer tx.Close()

	require.NoError(t, tx.Watch(ctx, "k"))
	require.NoError(t, mr.Set("k", "changed"))

	_, err = tx.Exec(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, "k")
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsTxConflict(err))
	assert.ErrorIs(t, err, ErrOperation)
	assert.True(t, mr.Exists("k"))

	// WATCH 已被清除，可以重新开始
	require.NoError(t, tx.Watch(ctx, "k"))
	_, err = tx.Exec(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, "k")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestTx_RollbackDiscardsWatch(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	ctx := context.Background()

	tx, err := c.StartTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Watch(ctx, "k"))
	require.NoError(t, tx.Unwatch(ctx))
	require.NoError(t, tx.Rollback(ctx))
	assert.ErrorIs(t, tx.Unwatch(ctx), ErrTxDone)
	_, err = tx.Exec(ctx, func(redis.Pipeliner) error { return nil })
	assert.ErrorIs(t, err, ErrTxDone)
}

func TestTx_WatchRequiresKeys(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	ctx := context.Background()

	tx, err := c.StartTransaction(ctx)
	require.NoError(t, err)
	defer tx.Close()
	assert.ErrorIs(t, tx.Watch(ctx), ErrOperation)
}

func TestTx_ClusterUnsupported(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologyCluster)
	ctx := context.Background()

	_, err := c.StartTransaction(ctx)
	assert.ErrorIs(t, err, ErrUnsupported)

	err = c.RunTransaction(ctx, func(context.Context, *Tx) error { return nil })
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestTx_StartOnClosedClient(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	require.NoError(t, c.Close())

	_, err := c.StartTransaction(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.StartTransaction(nil) //nolint:staticcheck // 测试 nil ctx
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestRunTransaction(t *testing.T) {
	mr := newMiniredis(t)
	c := newTestClient(t, mr, TopologySingle)
	ctx := context.Background()
	require.NoError(t, mr.Set("counter", "1"))

	err := c.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		if err := tx.Watch(ctx, "counter"); err != nil {
			return err
		}
		val, _, err := tx.Get(ctx, "counter")
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, "counter", val+"1", 0)
			return nil
		})
		return err
	})
	require.NoError(t, err)

	got, err := mr.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, "11", got)
}

func TestRunTransaction_ReplaysOnConnectionFailure(t *testing.T) {
	mr := newMiniredis(t)
	require.NoError(t, mr.Set("k", "v"))
	hook := newFaultHook("get", 1)
	c := newTestClient(t, mr, TopologySingle, WithHooks(hook))
	ctx := context.Background()

	calls := 0
	err := c.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		calls++
		if err := tx.Watch(ctx, "k"); err != nil {
			return err
		}
		_, _, err := tx.Get(ctx, "k")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1), c.Stats().Rebuilds)
}
