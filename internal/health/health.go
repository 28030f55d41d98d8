// Package health exposes liveness and readiness probes for the call service.
//
//   - /healthz — liveness; a process that can answer HTTP is alive.
//   - /readyz  — readiness; 200 only while the service should receive new
//     calls. It fails while the handler is draining or any registered
//     dependency check fails.
//
// Readiness is what a load balancer keys on, so the response also carries the
// active call count: during a drain the body shows how many callers are still
// on the line.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// checkTimeout bounds a single dependency check. Probes fire every few
// seconds; a check that needs longer than this is as good as failing.
const checkTimeout = 5 * time.Second

// Checker is a named dependency probe, nil meaning healthy. The function must
// respect context cancellation.
type Checker struct {
	// Name keys the check's result in the JSON body, e.g. "vad" or
	// "dialogue".
	Name string

	Check func(ctx context.Context) error
}

type result struct {
	Status      string            `json:"status"`
	ActiveCalls *int              `json:"active_calls,omitempty"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Checkers are fixed at construction;
// draining state may change at any time.
type Handler struct {
	checkers []Checker
	calls    func() int
	draining atomic.Bool
}

// Option configures a [Handler].
type Option func(*Handler)

// WithCheck registers a dependency check evaluated on every /readyz request,
// in registration order.
func WithCheck(name string, check func(ctx context.Context) error) Option {
	return func(h *Handler) {
		h.checkers = append(h.checkers, Checker{Name: name, Check: check})
	}
}

// WithActiveCalls supplies the live call counter reported by /readyz,
// typically the session registry's Len.
func WithActiveCalls(calls func() int) Option {
	return func(h *Handler) { h.calls = calls }
}

// New creates a probe [Handler].
func New(opts ...Option) *Handler {
	h := &Handler{}
	for _, o := range opts {
		o(h)
	}
	return h
}

// SetDraining flips the readiness answer. A draining handler fails /readyz so
// the load balancer stops routing new calls here while in-flight calls
// finish; liveness is unaffected.
func (h *Handler) SetDraining(v bool) {
	h.draining.Store(v)
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when the handler is not draining and every
// registered [Checker] passes. Each check runs under a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := result{Status: "ok"}
	if h.calls != nil {
		n := h.calls()
		res.ActiveCalls = &n
	}

	if h.draining.Load() {
		res.Status = "draining"
		writeJSON(w, http.StatusServiceUnavailable, res)
		return
	}

	checks := make(map[string]string, len(h.checkers))
	status := http.StatusOK
	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			checks[c.Name] = "ok"
		}
	}
	res.Checks = checks

	writeJSON(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
