// Package health provides HTTP health and readiness check handlers.
//
// The package exposes two endpoints:
//
//   - /healthz: liveness probe; always returns 200 OK.
//   - /readyz: readiness probe; returns 200 unless a registered [Checker]
//     fails. A checker that reports [ErrDegraded] is listed as degraded but
//     does not fail readiness: Gaia keeps serving every route with an
//     impaired dependency and only the results get thinner.
//
// Responses are JSON objects with a top-level "status" field ("ok",
// "degraded" or "fail") and, for /readyz, a "checks" map holding each named
// checker's status and detail.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Status values reported overall and per check.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// ErrDegraded marks a dependency that is missing or impaired in a way the
// service tolerates. Match it with errors.Is; build one with [Degraded].
var ErrDegraded = errors.New("degraded")

type degradedError struct{ detail string }

func (e *degradedError) Error() string        { return e.detail }
func (e *degradedError) Is(target error) bool { return target == ErrDegraded }

// Degraded returns an error matching [ErrDegraded] whose message is the
// formatted detail alone.
func Degraded(format string, args ...any) error {
	return &degradedError{detail: fmt.Sprintf(format, args...)}
}

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is healthy, an error matching [ErrDegraded] when it is impaired but
// tolerated, and any other error when the service cannot do its job.
type Checker struct {
	// Name labels the check in the JSON response (e.g. "analyzer").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// CheckResult is one entry of [Report.Checks].
type CheckResult struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report is the JSON body of both endpoints.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers, in order, on
// each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Report{Status: StatusOK})
}

// Evaluate runs every checker with a [checkTimeout] deadline derived from ctx
// and aggregates the results. Any failure makes the report fail; otherwise
// any degradation makes it degraded.
func (h *Handler) Evaluate(ctx context.Context) Report {
	rep := Report{Status: StatusOK, Checks: make(map[string]CheckResult, len(h.checkers))}
	for _, c := range h.checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()

		switch {
		case err == nil:
			rep.Checks[c.Name] = CheckResult{Status: StatusOK}
		case errors.Is(err, ErrDegraded):
			rep.Checks[c.Name] = CheckResult{Status: StatusDegraded, Detail: err.Error()}
			if rep.Status == StatusOK {
				rep.Status = StatusDegraded
			}
		default:
			rep.Checks[c.Name] = CheckResult{Status: StatusFail, Detail: err.Error()}
			rep.Status = StatusFail
		}
	}
	return rep
}

// Readyz answers 503 when [Handler.Evaluate] fails and 200 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Evaluate(r.Context())
	status := http.StatusOK
	if rep.Status == StatusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
