package adminserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kreeda/resumatch/internal/config"
)

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(cfg, rdb)
}

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(t, config.Config{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Readyz_OKWithRedis(t *testing.T) {
	s := newTestServer(t, config.Config{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_AdminQueues_ReportsThreeQueues(t *testing.T) {
	s := newTestServer(t, config.Config{})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/queues", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out []queueDepth
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out, 3)
}

func TestServer_AdminQueues_RequiresAuthWhenConfigured(t *testing.T) {
	cfg := config.Config{
		AdminUsername:      "ops",
		AdminPassword:      "secret",
		AdminSessionSecret: "salt",
	}
	s := newTestServer(t, cfg)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/queues", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/queues", nil)
	req.SetBasicAuth("ops", "secret")
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
