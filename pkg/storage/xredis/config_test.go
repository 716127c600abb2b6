package xredis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xredis/pkg/config/xconf"
)

func newYAMLConfig(t *testing.T, data string) xconf.Config {
	t.Helper()
	cfg, err := xconf.NewFromBytes([]byte(data), xconf.FormatYAML)
	require.NoError(t, err)
	return cfg
}

func TestTargetFromConfig_Single(t *testing.T) {
	cfg := newYAMLConfig(t, `
host: 10.0.0.1:6379
password: secret
db: 3
maxTotal: 32
maxIdle: 8
maxWaitMillis: 100
timeoutMillis: 2000
testOnBorrow: true
`)
	target, err := TargetFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, TopologySingle, target.Topology)
	assert.Equal(t, "secret", target.Password)
	assert.Equal(t, 3, target.DB)
	assert.Equal(t, 32, target.Pool.MaxTotal)
	assert.Equal(t, 8, target.Pool.MaxIdle)
	assert.Equal(t, 100*time.Millisecond, target.Pool.MaxWait)
	assert.True(t, target.Pool.TestOnBorrow)
	assert.Equal(t, 2*time.Second, target.ReadTimeout)

	// 下限在构建客户端时应用
	assert.Equal(t, MinSingleWait, target.withDefaults().Pool.MaxWait)
}

func TestTargetFromConfig_Cluster(t *testing.T) {
	cfg := newYAMLConfig(t, `
host: "10.0.0.1:7000;10.0.0.2:7000"
password: ""
`)
	target, err := TargetFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, TopologyCluster, target.Topology)
	assert.Len(t, target.Addrs, 2)
	assert.Empty(t, target.Password)
}

func TestTargetFromConfig_Sentinel(t *testing.T) {
	cfg := newYAMLConfig(t, `
password: secret
sentinel:
  master: mymaster
  nodes: "s1:26379;s2:26379"
`)
	target, err := TargetFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, TopologySentinel, target.Topology)
	assert.Equal(t, "mymaster", target.MasterName)
	assert.Equal(t, []string{"s1:26379", "s2:26379"}, target.Addrs)
}

func TestTargetFromConfig_PasswordRequired(t *testing.T) {
	cfg := newYAMLConfig(t, `host: 10.0.0.1:6379`)

	_, err := TargetFromConfig(cfg)
	assert.ErrorIs(t, err, ErrMissingPassword)

	target, err := AnonymousTargetFromConfig(cfg)
	require.NoError(t, err)
	assert.Empty(t, target.Password)
}

func TestTargetFromConfig_Invalid(t *testing.T) {
	_, err := TargetFromConfig(nil)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = AnonymousTargetFromConfig(newYAMLConfig(t, `db: 1`))
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = AnonymousTargetFromConfig(newYAMLConfig(t, `host: "bad"`))
	assert.ErrorIs(t, err, ErrInvalidTarget)
}
