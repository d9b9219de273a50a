package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func ok(context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, h http.Handler, path string) (int, Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("%s Content-Type = %q", path, ct)
	}
	var rep Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("%s: decode JSON: %v", path, err)
	}
	return rec.Code, rep
}

func TestDegraded(t *testing.T) {
	t.Parallel()

	err := Degraded("no LLM provider configured for %q", "openai")
	if !errors.Is(err, ErrDegraded) {
		t.Error("Degraded error does not match ErrDegraded")
	}
	if got, want := err.Error(), `no LLM provider configured for "openai"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(fmt.Errorf("analyzer: %w", err), ErrDegraded) {
		t.Error("wrapped Degraded error does not match ErrDegraded")
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]CheckResult
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
		},
		{
			name: "all healthy",
			checkers: []Checker{
				{Name: "analyzer", Check: ok},
				{Name: "recognizer", Check: ok},
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
			wantChecks: map[string]CheckResult{
				"analyzer":   {Status: StatusOK},
				"recognizer": {Status: StatusOK},
			},
		},
		{
			name: "degraded analyzer keeps serving",
			checkers: []Checker{
				{Name: "analyzer", Check: func(context.Context) error {
					return Degraded("no LLM provider configured")
				}},
				{Name: "recognizer", Check: ok},
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
			wantChecks: map[string]CheckResult{
				"analyzer":   {Status: StatusDegraded, Detail: "no LLM provider configured"},
				"recognizer": {Status: StatusOK},
			},
		},
		{
			name: "failure outranks degradation",
			checkers: []Checker{
				{Name: "recognizer", Check: failing("deepgram: dial: connection refused")},
				{Name: "analyzer", Check: func(context.Context) error { return ErrDegraded }},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusFail,
			wantChecks: map[string]CheckResult{
				"recognizer": {Status: StatusFail, Detail: "deepgram: dial: connection refused"},
				"analyzer":   {Status: StatusDegraded, Detail: "degraded"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, rep := get(t, http.HandlerFunc(New(tt.checkers...).Readyz), "/readyz")
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if rep.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", rep.Status, tt.wantStatus)
			}
			if len(rep.Checks) != len(tt.wantChecks) {
				t.Errorf("checks = %v, want %v", rep.Checks, tt.wantChecks)
			}
			for name, want := range tt.wantChecks {
				if got := rep.Checks[name]; got != want {
					t.Errorf("checks[%q] = %+v, want %+v", name, got, want)
				}
			}
		})
	}
}

func TestReadyz_CancelledRequestFails(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	New(Checker{Name: "analyzer", Check: failing("boom")}).Register(mux)

	// Liveness ignores the checkers.
	code, rep := get(t, mux, "/healthz")
	if code != http.StatusOK || rep.Status != StatusOK || rep.Checks != nil {
		t.Errorf("/healthz = %d %+v", code, rep)
	}
	code, rep = get(t, mux, "/readyz")
	if code != http.StatusServiceUnavailable || rep.Status != StatusFail {
		t.Errorf("/readyz = %d %+v", code, rep)
	}
}
