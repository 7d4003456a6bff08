// Package health exposes the liveness and readiness probes for the elocute
// process.
//
// Liveness (/healthz) answers 200 for any process able to serve HTTP.
// Readiness (/readyz) runs every registered [Checker] and answers 200 only
// when all of them pass; any failure turns the response into a 503 with a
// per-check breakdown. Bodies are JSON objects of the form
// {"status":"ok|fail","checks":{...}}.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"
)

// probeTimeout bounds how long one readiness check may run.
const probeTimeout = 5 * time.Second

// Checker probes one dependency of the running process.
type Checker struct {
	// Name keys this check's entry in the JSON response ("capture",
	// "session", ...).
	Name string

	// Check returns nil when the dependency is usable. It must honour ctx.
	Check func(ctx context.Context) error
}

// report is the wire shape of both probe responses.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers the two probe endpoints. The checker set is fixed at
// construction, so a Handler needs no locking.
type Handler struct {
	checkers []Checker
}

// New builds a [Handler] over the given checkers. Readiness evaluates them
// sequentially, in the order given here.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: slices.Clone(checkers)}
}

// Healthz answers the liveness probe. It never fails: reaching this handler
// already proves the process serves HTTP.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz answers the readiness probe: 200 when every checker passes, 503
// with per-check detail otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks, ok := h.evaluate(r.Context())

	res := report{Status: "ok", Checks: checks}
	code := http.StatusOK
	if !ok {
		res.Status = "fail"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, res)
}

// evaluate runs every checker under its own [probeTimeout] slice of ctx and
// returns the per-check outcomes plus overall success. A failing checker
// never stops the sweep; later checks still report.
func (h *Handler) evaluate(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string, len(h.checkers))
	ok := true
	for _, c := range h.checkers {
		cctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := c.Check(cctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ok = false
			continue
		}
		checks[c.Name] = "ok"
	}
	return checks, ok
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON marshals v before touching the response so a marshal failure can
// still produce a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
