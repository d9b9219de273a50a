package observe

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// routedHandler mounts a few Gaia-shaped routes behind the middleware.
func routedHandler(t *testing.T) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)
	exp := installTracer(t)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	})
	mux.HandleFunc("GET /cards/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, _ *http.Request) {
		_, _, err := http.NewResponseController(w).Hijack()
		if err == nil {
			t.Error("hijacking a recorder should fail")
		}
		w.WriteHeader(http.StatusNotImplemented)
	})
	return Middleware(m)(mux), reader, exp
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

// durationPoints returns the request duration data points keyed by route.
func durationPoints(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.HistogramDataPoint[float64] {
	t.Helper()
	met := findMetric(collect(t, reader), "gaia.http.request.duration")
	if met == nil {
		t.Fatal("gaia.http.request.duration not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration data is %T, want histogram", met.Data)
	}
	out := make(map[string]metricdata.HistogramDataPoint[float64])
	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value("route")
		out[v.AsString()] = dp
	}
	return out
}

func TestMiddleware_CorrelationHeader(t *testing.T) {
	h, _, _ := routedHandler(t)

	rec := serve(h, http.MethodPost, "/search")
	cid := rec.Header().Get(CorrelationHeader)
	if !hexTraceID.MatchString(cid) {
		t.Fatalf("%s = %q, want a trace ID", CorrelationHeader, cid)
	}
	if tp := rec.Header().Get("traceparent"); !strings.Contains(tp, cid) {
		t.Errorf("traceparent %q does not carry trace %s", tp, cid)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	h, _, exp := routedHandler(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodPost, "/search", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(CorrelationHeader); got != traceID {
		t.Errorf("%s = %q, want %q", CorrelationHeader, got, traceID)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if got := spans[0].Parent.SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("parent span = %s, want the incoming one", got)
	}
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	h, reader, exp := routedHandler(t)

	serve(h, http.MethodGet, "/cards/abc")
	serve(h, http.MethodGet, "/cards/def")
	serve(h, http.MethodGet, "/no/such/path")

	points := durationPoints(t, reader)
	if len(points) != 2 {
		t.Fatalf("routes recorded = %v, want /cards/{id} and %s", keys(points), unmatchedRoute)
	}
	dp, ok := points["/cards/{id}"]
	if !ok {
		t.Fatalf("no data point for /cards/{id}; got %v", keys(points))
	}
	if dp.Count != 2 {
		t.Errorf("/cards/{id} count = %d, want 2", dp.Count)
	}
	if v, _ := dp.Attributes.Value("status"); v.AsInt64() != http.StatusNotFound {
		t.Errorf("status attribute = %d, want 404", v.AsInt64())
	}
	if _, ok := points[unmatchedRoute]; !ok {
		t.Errorf("unmatched request not labelled %q", unmatchedRoute)
	}

	spans := exp.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("recorded %d spans, want 3", len(spans))
	}
	if spans[0].Name != "HTTP GET /cards/{id}" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "HTTP GET /cards/{id}")
	}
	var status, route bool
	for _, a := range spans[0].Attributes {
		switch string(a.Key) {
		case "http.response.status_code":
			status = a.Value.AsInt64() == http.StatusNotFound
		case "http.route":
			route = a.Value.AsString() == "/cards/{id}"
		}
	}
	if !status || !route {
		t.Errorf("span attributes %v missing route or status", spans[0].Attributes)
	}
}

func TestMiddleware_ProbesLogAtDebug(t *testing.T) {
	h, _, _ := routedHandler(t)
	buf := captureLogs(t, slog.LevelInfo)

	serve(h, http.MethodGet, "/healthz")
	if buf.Len() != 0 {
		t.Errorf("probe logged at info: %s", buf.String())
	}

	serve(h, http.MethodPost, "/search")
	out := buf.String()
	if !strings.Contains(out, "request completed") || !strings.Contains(out, "route=/search") {
		t.Errorf("search request not logged: %s", out)
	}
}

func TestMiddleware_HijackUnsupported(t *testing.T) {
	h, _, _ := routedHandler(t)

	rec := serve(h, http.MethodGet, "/ws")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}
}

func TestRoute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		want    string
	}{
		{"", unmatchedRoute},
		{"POST /analyze-opportunities", "/analyze-opportunities"},
		{"/metrics", "/metrics"},
		{"GET /cards/{id}", "/cards/{id}"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Pattern = tt.pattern
		if got := route(r); got != tt.want {
			t.Errorf("route(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
