// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/account-service/internal/core"
)

const probeTimeout = 5 * time.Second

type Checker interface {
	Ping(ctx context.Context) error
}

// Dependency is a named backing service probed by the readiness check.
type Dependency struct {
	Name    string
	Checker Checker
}

type state int32

const (
	stateServing state = iota
	stateStarting
	stateDraining
)

func (s state) String() string {
	switch s {
	case stateStarting:
		return "starting"
	case stateDraining:
		return "shutting_down"
	default:
		return "ok"
	}
}

type Handler struct {
	deps    []Dependency
	state   atomic.Int32
	started time.Time
}

func NewHandler(deps ...Dependency) *Handler {
	return &Handler{deps: deps, started: time.Now()}
}

// RegisterRoutes mounts the orchestrator probes at the root.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

// RegisterAPIRoutes mounts the public healthcheck under the API prefix.
func (h *Handler) RegisterAPIRoutes(r chi.Router) {
	r.Get("/healthcheck", h.Healthcheck)
}

func (h *Handler) Healthcheck(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, map[string]string{"message": "Server is running"}, "Success")
}

func (h *Handler) current() state {
	return state(h.state.Load())
}

// Liveness only fails while draining; a starting process is alive.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	s := h.current()
	if s == stateDraining {
		writeProbe(w, http.StatusServiceUnavailable, StatusResponse{Status: s.String()})
		return
	}
	writeProbe(w, http.StatusOK, StatusResponse{Status: stateServing.String()})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if s := h.current(); s != stateServing {
		writeProbe(w, http.StatusServiceUnavailable, StatusResponse{Status: s.String()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	resp := ReadinessResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
		Checks: h.probeAll(ctx),
	}

	code := http.StatusOK
	for _, c := range resp.Checks {
		if !c.Healthy {
			resp.Status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}

	writeProbe(w, code, resp)
}

// probeAll pings every dependency concurrently and keeps registration order.
func (h *Handler) probeAll(ctx context.Context) []HealthCheck {
	results := make([]HealthCheck, len(h.deps))

	var wg sync.WaitGroup
	for i, dep := range h.deps {
		wg.Go(func() {
			results[i] = probe(ctx, dep)
		})
	}
	wg.Wait()

	return results
}

func probe(ctx context.Context, dep Dependency) HealthCheck {
	if dep.Checker == nil {
		return HealthCheck{Name: dep.Name, Message: "checker not configured"}
	}

	start := time.Now()
	err := dep.Checker.Ping(ctx)
	check := HealthCheck{
		Name:    dep.Name,
		Healthy: err == nil,
		Latency: time.Since(start).String(),
	}
	if err != nil {
		check.Message = "ping failed"
	}
	return check
}

// SetReady toggles between serving and starting. It has no effect once
// draining has begun.
func (h *Handler) SetReady(ready bool) {
	next := stateStarting
	if ready {
		next = stateServing
	}
	for {
		cur := h.state.Load()
		if state(cur) == stateDraining || h.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

func (h *Handler) SetShutdown(shutdown bool) {
	if shutdown {
		h.state.Store(int32(stateDraining))
		return
	}
	h.state.Store(int32(stateServing))
}

func writeProbe(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(data)
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Status string        `json:"status"`
	Uptime string        `json:"uptime"`
	Checks []HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}
