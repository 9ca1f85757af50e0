// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/account-service/internal/user"
)

func newRouter(cfg HandlerConfig) chi.Router {
	r := chi.NewRouter()
	NewHandler(cfg).RegisterRoutes(r)
	return r
}

func TestSystemStats(t *testing.T) {
	r := newRouter(HandlerConfig{
		DBStats:    func() sql.DBStats { return sql.DBStats{OpenConnections: 3, InUse: 1} },
		RedisStats: func() *redis.PoolStats { return &redis.PoolStats{Hits: 7} },
		DBPing:     func(context.Context) error { return nil },
		RedisPing:  func(context.Context) error { return errors.New("down") },
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data SystemStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Database.Healthy)
	assert.False(t, body.Data.Redis.Healthy)
	require.NotNil(t, body.Data.Database.Stats)
	assert.Equal(t, 3, body.Data.Database.Stats.OpenConnections)
	assert.EqualValues(t, 7, body.Data.Redis.Stats.Hits)
	assert.NotEmpty(t, body.Data.Runtime.GoVersion)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "account_test_total",
		Help: "test counter",
	})
	reg.MustRegister(counter)
	counter.Inc()

	r := newRouter(HandlerConfig{Gatherer: reg})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "account_test_total 1")
}

func TestRuntimeStats_NoDependencies(t *testing.T) {
	r := newRouter(HandlerConfig{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/runtime", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubCounter struct {
	counts user.Counts
	err    error
}

func (c stubCounter) Counts(context.Context) (user.Counts, error) { return c.counts, c.err }

func TestUserStats(t *testing.T) {
	r := newRouter(HandlerConfig{Users: stubCounter{counts: user.Counts{Total: 5, Verified: 4, ActiveSessions: 2}}})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"activeSessions":2`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/", nil))
	assert.Contains(t, rec.Body.String(), `"verified":4`)
}

func TestUserStats_Errors(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(HandlerConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/users", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(HandlerConfig{Users: stubCounter{err: errors.New("db down")}}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/users", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
