package xregistry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/xredis/pkg/context/xtenant"
	"github.com/omeyang/xredis/pkg/storage/xredis"
)

var (
	keyOrders  = xtenant.TenantKey{TenantID: "t1", ServiceID: "orders"}
	keyBilling = xtenant.TenantKey{TenantID: "t1", ServiceID: "billing"}
)

func newRegistry(t *testing.T, source Source, opts ...Option) *Registry {
	t.Helper()
	reg := New(source, opts...)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestRegistry_ResolveSingleton(t *testing.T) {
	mr := miniredis.RunT(t)
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	source.EXPECT().
		Resolve(gomock.Any(), keyOrders).
		DoAndReturn(func(context.Context, xtenant.TenantKey) (xredis.Target, error) {
			// 拉长解析窗口，让并发调用者都进入等待
			time.Sleep(20 * time.Millisecond)
			return singleTarget(mr), nil
		}).
		Times(1)

	reg := newRegistry(t, source)

	const n = 32
	clients := make([]*xredis.Client, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := reg.Resolve(context.Background(), keyOrders)
			assert.NoError(t, err)
			clients[i] = c
		}()
	}
	wg.Wait()

	require.NotNil(t, clients[0])
	for _, c := range clients {
		assert.Same(t, clients[0], c)
	}
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, []string{"tenant:t1/orders"}, reg.Keys())

	ctx := context.Background()
	require.NoError(t, clients[0].Set(ctx, "k", "v", 0))
	v, found, err := clients[0].Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}

func TestRegistry_SharesBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	source.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(singleTarget(mr), nil).Times(2)

	reg := newRegistry(t, source)
	ctx := context.Background()

	c1, err := reg.Resolve(ctx, keyOrders)
	require.NoError(t, err)
	c2, err := reg.Resolve(ctx, keyBilling)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, 2, reg.Len())

	c3, err := reg.ForTarget(ctx, singleTarget(mr))
	require.NoError(t, err)
	assert.Same(t, c1, c3)
}

func TestRegistry_DistinctCredentials(t *testing.T) {
	mr := miniredis.RunT(t)
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	withPassword := singleTarget(mr)
	withPassword.Password = "other"
	source.EXPECT().Resolve(gomock.Any(), keyOrders).Return(singleTarget(mr), nil)
	source.EXPECT().Resolve(gomock.Any(), keyBilling).Return(withPassword, nil)

	reg := newRegistry(t, source)
	ctx := context.Background()

	c1, err := reg.Resolve(ctx, keyOrders)
	require.NoError(t, err)
	c2, err := reg.Resolve(ctx, keyBilling)
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
	assert.Equal(t, c1.Target().Key(), c2.Target().Key())
}

func TestRegistry_ResolveErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("source failure is not cached", func(t *testing.T) {
		mr := miniredis.RunT(t)
		ctrl := gomock.NewController(t)
		source := NewMockSource(ctrl)
		boom := errors.New("auth service down")
		gomock.InOrder(
			source.EXPECT().Resolve(gomock.Any(), keyOrders).Return(xredis.Target{}, boom),
			source.EXPECT().Resolve(gomock.Any(), keyOrders).Return(singleTarget(mr), nil),
		)
		reg := newRegistry(t, source)

		_, err := reg.Resolve(ctx, keyOrders)
		assert.ErrorIs(t, err, ErrResolve)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, reg.Len())

		c, err := reg.Resolve(ctx, keyOrders)
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("invalid target", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := NewMockSource(ctrl)
		source.EXPECT().Resolve(gomock.Any(), keyOrders).Return(xredis.Target{Topology: xredis.TopologySingle}, nil)
		reg := newRegistry(t, source)

		_, err := reg.Resolve(ctx, keyOrders)
		assert.ErrorIs(t, err, ErrResolve)
		assert.ErrorIs(t, err, xredis.ErrInvalidTarget)
	})

	t.Run("invalid key skips source", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reg := newRegistry(t, NewMockSource(ctrl))

		_, err := reg.Resolve(ctx, xtenant.TenantKey{TenantID: "t1"})
		assert.ErrorIs(t, err, ErrResolve)
		assert.ErrorIs(t, err, xtenant.ErrEmptyServiceID)
	})

	t.Run("nil context", func(t *testing.T) {
		reg := newRegistry(t, nil)
		//nolint:staticcheck // 测试 nil ctx
		_, err := reg.Resolve(nil, keyOrders)
		assert.ErrorIs(t, err, ErrNilContext)
		//nolint:staticcheck // 测试 nil ctx
		_, err = reg.ResolveTarget(nil, "a:1")
		assert.ErrorIs(t, err, ErrNilContext)
	})

	t.Run("no source", func(t *testing.T) {
		reg := newRegistry(t, nil)
		_, err := reg.Resolve(ctx, keyOrders)
		assert.ErrorIs(t, err, ErrNoSource)
	})
}

func TestRegistry_CallerCancelDoesNotAbortResolution(t *testing.T) {
	mr := miniredis.RunT(t)
	release := make(chan struct{})
	started := make(chan struct{})
	source := SourceFunc(func(ctx context.Context, _ xtenant.TenantKey) (xredis.Target, error) {
		close(started)
		select {
		case <-release:
			return singleTarget(mr), nil
		case <-ctx.Done():
			return xredis.Target{}, ctx.Err()
		}
	})
	reg := newRegistry(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := reg.Resolve(ctx, keyOrders)
		errCh <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	c, err := reg.Resolve(context.Background(), keyOrders)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestRegistry_ResolveTimeout(t *testing.T) {
	source := SourceFunc(func(ctx context.Context, _ xtenant.TenantKey) (xredis.Target, error) {
		<-ctx.Done()
		return xredis.Target{}, ctx.Err()
	})
	reg := newRegistry(t, source, WithResolveTimeout(20*time.Millisecond))

	_, err := reg.Resolve(context.Background(), keyOrders)
	assert.ErrorIs(t, err, ErrResolve)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_ResolveTarget(t *testing.T) {
	mr := miniredis.RunT(t)
	reg := newRegistry(t, nil)
	ctx := context.Background()

	c1, err := reg.ResolveTarget(ctx, mr.Addr())
	require.NoError(t, err)
	c2, err := reg.ResolveTarget(ctx, " "+mr.Addr()+" ")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, xredis.TopologySingle, c1.Topology())
	require.NoError(t, c1.Ping(ctx))

	cluster, err := reg.ResolveTarget(ctx, mr.Addr()+";"+mr.Addr())
	require.NoError(t, err)
	assert.Equal(t, xredis.TopologyCluster, cluster.Topology())
	assert.NotSame(t, c1, cluster)

	_, err = reg.ResolveTarget(ctx, "")
	assert.ErrorIs(t, err, ErrResolve)
	_, err = reg.ForTarget(ctx, xredis.Target{})
	assert.ErrorIs(t, err, ErrResolve)
}

func TestRegistry_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	source.EXPECT().Resolve(gomock.Any(), keyOrders).Return(singleTarget(mr), nil)

	reg := New(source, WithClientOptions(xredis.WithHealthTimeout(time.Second)))
	ctx := context.Background()
	c, err := reg.Resolve(ctx, keyOrders)
	require.NoError(t, err)

	require.NoError(t, reg.Close())
	assert.True(t, c.IsClosed())
	assert.Equal(t, 0, reg.Len())
	require.NoError(t, reg.Close())

	_, err = reg.Resolve(ctx, keyOrders)
	assert.ErrorIs(t, err, ErrRegistryClosed)
	_, err = reg.ResolveTarget(ctx, mr.Addr())
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestFingerprint(t *testing.T) {
	base := xredis.Target{Topology: xredis.TopologySingle, Addrs: []string{"a:1"}}
	same := base
	other := base
	other.Password = "x"
	pool := base
	pool.Pool.MaxTotal = 8

	assert.Equal(t, fingerprint(base), fingerprint(same))
	assert.NotEqual(t, fingerprint(base), fingerprint(other))
	assert.NotEqual(t, fingerprint(base), fingerprint(pool))
}
