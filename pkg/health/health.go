// Package health backs the /livez and /readyz endpoints of the storefront
// API server. Liveness covers the process itself; readiness additionally
// gates on storage and is switched off during graceful shutdown so the
// load balancer drains the instance before it stops.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// maxStrikes is how many consecutive failures a check accumulates before
// it is reported unhealthy. A single success resets the count, so a
// transient storage blip does not flip readiness.
const maxStrikes = 3

// check is a named probe plus its rolling failure state. The strike and
// error fields are guarded by the owning Health's mutex.
type check struct {
	name    string
	timeout time.Duration
	probe   CheckFunc

	strikes int
	lastErr error
}

func (c *check) failing() bool { return c.strikes >= maxStrikes }

// Health owns the registered probes and the manual ready switch. The
// service starts not-ready; call SetReady(true) once wiring completes.
type Health struct {
	mu        sync.Mutex
	liveness  []*check
	readiness []*check
	ready     bool
	stop      context.CancelFunc
}

func New() *Health { return &Health{} }

// AddLivenessCheck registers a probe for /livez. Liveness failures mean the
// process should be restarted, not merely drained.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, probe CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, &check{name: name, timeout: timeout, probe: probe})
}

// AddReadinessCheck registers a probe for /readyz, typically storage
// connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, probe CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, &check{name: name, timeout: timeout, probe: probe})
}

// Start launches the probe loop. Register all checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	h.mu.Unlock()

	go h.loop(ctx, interval)
}

func (h *Health) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.runAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.runAll(ctx)
		}
	}
}

// runAll executes every probe once. Probes run outside the lock; only the
// strike bookkeeping happens under it.
func (h *Health) runAll(ctx context.Context) {
	h.mu.Lock()
	checks := make([]*check, 0, len(h.liveness)+len(h.readiness))
	checks = append(checks, h.liveness...)
	checks = append(checks, h.readiness...)
	h.mu.Unlock()

	for _, c := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.probe(probeCtx)
		cancel()

		h.mu.Lock()
		c.lastErr = err
		if err != nil {
			c.strikes++
		} else {
			c.strikes = 0
		}
		h.mu.Unlock()
	}
}

// SetReady flips the manual readiness switch. The server sets it to false
// at the start of graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	h.ready = ready
	h.mu.Unlock()
}

// IsReady reports whether the service accepts traffic: the manual switch
// is on and no readiness probe is failing.
func (h *Health) IsReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ready {
		return false
	}
	for _, c := range h.readiness {
		if c.failing() {
			return false
		}
	}
	return true
}

// Stop cancels the probe loop. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 while every liveness probe passes, 503
// with the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	failed := failures(h.liveness)
	h.mu.Unlock()

	writeReport(w, failed)
}

// ReadyEndpoint serves /readyz: 200 when the service is marked ready and
// every readiness probe passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	failed := failures(h.readiness)
	if !h.ready {
		failed["_readiness"] = "service is not ready"
	}
	h.mu.Unlock()

	writeReport(w, failed)
}

// failures must be called with the mutex held.
func failures(checks []*check) map[string]string {
	out := make(map[string]string)
	for _, c := range checks {
		if !c.failing() {
			continue
		}
		msg := "check is unhealthy"
		if c.lastErr != nil {
			msg = c.lastErr.Error()
		}
		out[c.name] = msg
	}
	return out
}

func writeReport(w http.ResponseWriter, failed map[string]string) {
	rep := report{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		rep = report{Status: "unhealthy", Checks: failed}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
