package xauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xredis/pkg/context/xtenant"
	"github.com/omeyang/xredis/pkg/storage/xredis"
)

// fakeAuth 模拟认证服务与配置中心，两者挂在同一个 httptest 服务上。
type fakeAuth struct {
	t        *testing.T
	server   *httptest.Server
	topology Topology
	authCode int
	authHits atomic.Int32
	topoHits atomic.Int32
}

func newFakeAuth(t *testing.T, topo Topology) *fakeAuth {
	t.Helper()
	f := &fakeAuth{t: t, topology: topo}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+DefaultAuthPath, f.handleAuth)
	mux.HandleFunc("GET /store"+DefaultTopologyPath, f.handleTopology)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAuth) handleAuth(w http.ResponseWriter, r *http.Request) {
	f.authHits.Add(1)
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	assert.Equal(f.t, "t1", req.TenantID)
	assert.Equal(f.t, "orders", req.ServiceID)
	assert.Equal(f.t, "t1", r.Header.Get(xtenant.HeaderTenantID))
	if req.ClientID != "svc" || req.ClientSecret != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":40101,"message":"bad client"}`))
		return
	}
	writeJSON(w, authResponse{
		Code:    f.authCode,
		Message: "ok",
		Data: Credentials{
			ConfigAddress:  f.server.URL + "/store/",
			ConfigUser:     "cfg",
			ConfigPassword: "cfg-pass",
			UserID:         "u-42",
		},
	})
}

func (f *fakeAuth) handleTopology(w http.ResponseWriter, r *http.Request) {
	f.topoHits.Add(1)
	user, pass, ok := r.BasicAuth()
	if !ok || user != "cfg" || pass != "cfg-pass" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	assert.Equal(f.t, "u-42", r.URL.Query().Get("userId"))
	assert.Equal(f.t, "orders", r.URL.Query().Get("serviceId"))
	writeJSON(w, f.topology)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAuth) config() *Config {
	return &Config{
		Host:          f.server.URL,
		AllowInsecure: true,
		ClientID:      "svc",
		ClientSecret:  "secret",
	}
}

var tenantKey = xtenant.TenantKey{TenantID: "t1", ServiceID: "orders"}

func TestHTTPSource_Resolve(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		f := newFakeAuth(t, Topology{
			Hosts:         "10.0.0.1:6379",
			Password:      "plain",
			MaxTotal:      32,
			MaxWaitMillis: 500,
			TestOnBorrow:  true,
		})
		src, err := NewHTTPSource(f.config())
		require.NoError(t, err)

		target, err := src.Resolve(context.Background(), tenantKey)
		require.NoError(t, err)
		assert.Equal(t, xredis.TopologySingle, target.Topology)
		assert.Equal(t, []string{"10.0.0.1:6379"}, target.Addrs)
		assert.Equal(t, "plain", target.Password)
		assert.Equal(t, 32, target.Pool.MaxTotal)
		assert.Equal(t, 500*time.Millisecond, target.Pool.MaxWait)
		assert.True(t, target.Pool.TestOnBorrow)
		assert.EqualValues(t, 1, f.authHits.Load())
		assert.EqualValues(t, 1, f.topoHits.Load())
	})

	t.Run("cluster with encrypted password", func(t *testing.T) {
		c, err := NewAESGCMCipher([]byte("0123456789abcdef"))
		require.NoError(t, err)
		sealed, err := c.Encrypt("s3cret")
		require.NoError(t, err)

		f := newFakeAuth(t, Topology{Hosts: "a:7000;b:7000", Password: sealed, PasswordEncrypted: true})
		src, err := NewHTTPSource(f.config(), WithDecrypter(c))
		require.NoError(t, err)

		target, err := src.Resolve(context.Background(), tenantKey)
		require.NoError(t, err)
		assert.Equal(t, xredis.TopologyCluster, target.Topology)
		assert.Equal(t, "s3cret", target.Password)
	})

	t.Run("encrypted without decrypter", func(t *testing.T) {
		f := newFakeAuth(t, Topology{Hosts: "a:1", Password: "xx", PasswordEncrypted: true})
		src, err := NewHTTPSource(f.config())
		require.NoError(t, err)
		_, err = src.Resolve(context.Background(), tenantKey)
		assert.ErrorIs(t, err, ErrDecrypt)
	})

	t.Run("sentinel", func(t *testing.T) {
		f := newFakeAuth(t, Topology{Hosts: "sentinel://mymaster@s1:26379;s2:26379", DB: 3})
		src, err := NewHTTPSource(f.config())
		require.NoError(t, err)
		target, err := src.Resolve(context.Background(), tenantKey)
		require.NoError(t, err)
		assert.Equal(t, xredis.TopologySentinel, target.Topology)
		assert.Equal(t, "mymaster", target.MasterName)
		assert.Equal(t, 3, target.DB)
		assert.Empty(t, target.Password)
	})

	t.Run("invalid hosts", func(t *testing.T) {
		f := newFakeAuth(t, Topology{Hosts: "no-port"})
		src, err := NewHTTPSource(f.config())
		require.NoError(t, err)
		_, err = src.Resolve(context.Background(), tenantKey)
		assert.ErrorIs(t, err, ErrResponseInvalid)
		assert.ErrorIs(t, err, xredis.ErrInvalidTarget)
	})

	t.Run("missing hosts", func(t *testing.T) {
		f := newFakeAuth(t, Topology{})
		src, err := NewHTTPSource(f.config())
		require.NoError(t, err)
		_, err = src.Resolve(context.Background(), tenantKey)
		assert.ErrorIs(t, err, ErrResponseInvalid)
	})

	t.Run("bad credentials", func(t *testing.T) {
		f := newFakeAuth(t, Topology{Hosts: "a:1"})
		cfg := f.config()
		cfg.ClientSecret = "wrong"
		src, err := NewHTTPSource(cfg)
		require.NoError(t, err)

		_, err = src.Resolve(context.Background(), tenantKey)
		assert.ErrorIs(t, err, ErrUnauthorized)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 40101, apiErr.Code)
		assert.EqualValues(t, 0, f.topoHits.Load())
	})

	t.Run("business error code", func(t *testing.T) {
		f := newFakeAuth(t, Topology{Hosts: "a:1"})
		f.authCode = 5001
		src, err := NewHTTPSource(f.config())
		require.NoError(t, err)

		_, err = src.Resolve(context.Background(), tenantKey)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 5001, apiErr.Code)
	})

	t.Run("invalid key", func(t *testing.T) {
		f := newFakeAuth(t, Topology{Hosts: "a:1"})
		src, err := NewHTTPSource(f.config())
		require.NoError(t, err)
		_, err = src.Resolve(context.Background(), xtenant.TenantKey{TenantID: "t1"})
		assert.ErrorIs(t, err, xtenant.ErrEmptyServiceID)
		assert.EqualValues(t, 0, f.authHits.Load())

		_, err = src.Resolve(nil, tenantKey) //nolint:staticcheck // 测试 nil ctx
		assert.ErrorIs(t, err, ErrNilContext)
	})

	t.Run("server down", func(t *testing.T) {
		f := newFakeAuth(t, Topology{Hosts: "a:1"})
		src, err := NewHTTPSource(f.config())
		require.NoError(t, err)
		f.server.Close()
		_, err = src.Resolve(context.Background(), tenantKey)
		assert.ErrorIs(t, err, ErrRequestFailed)
	})
}

func TestNewHTTPSource_InvalidConfig(t *testing.T) {
	_, err := NewHTTPSource(nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = NewHTTPSource(&Config{Host: "http://auth.local", ClientID: "a", ClientSecret: "b"})
	assert.ErrorIs(t, err, ErrInsecureHost)

	_, err = NewHTTPSource(&Config{Host: "https://auth.local"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewHTTPSource(&Config{
		Host: "https://auth.local", ClientID: "a", ClientSecret: "b",
		TLS: &TLSConfig{RootCAFile: "/nonexistent/ca.pem"},
	})
	assert.Error(t, err)
}
