// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/account-service/internal/core"
	"github.com/carterperez-dev/templates/account-service/internal/user"
)

// UserCounter is the slice of the user repository the ops surface reads.
type UserCounter interface {
	Counts(ctx context.Context) (user.Counts, error)
}

// HandlerConfig wires the ops surface. Any field may be nil; the matching
// section is then omitted or reported unhealthy.
type HandlerConfig struct {
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	DBPing     func(ctx context.Context) error
	RedisPing  func(ctx context.Context) error
	Users      UserCounter
	Gatherer   prometheus.Gatherer
}

// Handler serves the internal ops surface: Prometheus metrics, pool
// statistics and account totals. It is mounted on the ops listener only,
// which binds to a private address and carries no session auth.
type Handler struct {
	cfg HandlerConfig
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	if h.cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			h.cfg.Gatherer,
			promhttp.HandlerOpts{EnableOpenMetrics: true},
		))
	}

	r.Route("/stats", func(r chi.Router) {
		r.Get("/", h.GetSystemStats)
		r.Get("/db", h.GetDatabaseStats)
		r.Get("/redis", h.GetRedisStats)
		r.Get("/runtime", h.GetRuntimeStats)
		r.Get("/users", h.GetUserStats)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: pingOK(ctx, h.cfg.DBPing),
			Stats:   h.dbPool(),
		},
		Redis: RedisStatus{
			Healthy: pingOK(ctx, h.cfg.RedisPing),
			Stats:   h.redisPool(),
		},
		Runtime: readRuntime(),
	}

	if h.cfg.Users != nil {
		if counts, err := h.cfg.Users.Counts(ctx); err == nil {
			resp.Users = &counts
		}
	}

	core.OK(w, resp, "Success")
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.dbPool(), "Success")
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.redisPool(), "Success")
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntime(), "Success")
}

func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Users == nil {
		core.NotFound(w, "user stats")
		return
	}

	counts, err := h.cfg.Users.Counts(r.Context())
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, counts, "Success")
}

func pingOK(ctx context.Context, ping func(context.Context) error) bool {
	return ping != nil && ping(ctx) == nil
}

func readRuntime() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     m.Alloc,
		MemSys:       m.Sys,
		NumGC:        m.NumGC,
	}
}

func (h *Handler) dbPool() *DBPoolStats {
	if h.cfg.DBStats == nil {
		return nil
	}

	s := h.cfg.DBStats()
	return &DBPoolStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration.String(),
	}
}

func (h *Handler) redisPool() *RedisPoolStats {
	if h.cfg.RedisStats == nil {
		return nil
	}

	s := h.cfg.RedisStats()
	return &RedisPoolStats{
		Hits:       s.Hits,
		Misses:     s.Misses,
		Timeouts:   s.Timeouts,
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
	}
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
	Users    *user.Counts   `json:"users,omitempty"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"maxOpenConnections"`
	OpenConnections    int    `json:"openConnections"`
	InUse              int    `json:"inUse"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"waitCount"`
	WaitDuration       string `json:"waitDuration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"totalConns"`
	IdleConns  uint32 `json:"idleConns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
	NumCPU       int    `json:"numCpu"`
	MemAlloc     uint64 `json:"memAllocBytes"`
	MemSys       uint64 `json:"memSysBytes"`
	NumGC        uint32 `json:"numGc"`
}
